package wakeup

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sayit-alarm/internal/config"
)

// Registration is one pending wakeup.
type Registration struct {
	// Token identifies the registration.
	Token string
	// AlarmID is the alarm to wake.
	AlarmID int64
	// TriggerAt is the instant the wakeup fires at.
	TriggerAt time.Time
}

// Repository defines persistence operations for pending registrations.
type Repository interface {
	Load(ctx context.Context) ([]Registration, error)
	Save(ctx context.Context, registrations []Registration) error
}

// FileRepository persists registrations to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

const (
	fieldRegistrations = "registrations"
	fieldToken         = "token"
	fieldAlarmID       = "alarm_id"
	fieldTriggerAt     = "trigger_at"
)

// ErrNotFound is returned when the file does not exist yet.
var ErrNotFound = errors.New("wakeup registrations not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the registrations from disk.
func (r *FileRepository) Load(_ context.Context) ([]Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read wakeup file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode wakeup file: %w", err)
	}

	return fromProto(&document)
}

// Save replaces the file contents with registrations, ordered by token.
func (r *FileRepository) Save(_ context.Context, registrations []Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toProto(registrations)
	if err != nil {
		return fmt.Errorf("encode registrations: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode registrations: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write wakeup file: %w", err)
	}

	return nil
}

// fromProto converts the stored document into registrations.
func fromProto(document *structpb.Struct) ([]Registration, error) {
	values := document.GetFields()[fieldRegistrations].GetListValue().GetValues()
	result := make([]Registration, 0, len(values))

	for i, value := range values {
		fields := value.GetStructValue().GetFields()

		token := fields[fieldToken].GetStringValue()
		if token == "" {
			return nil, fmt.Errorf("registration %d: token is missing", i)
		}

		alarmID, err := strconv.ParseInt(fields[fieldAlarmID].GetStringValue(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("registration %s: parse alarm id: %w", token, err)
		}

		triggerAt, err := time.Parse(time.RFC3339Nano, fields[fieldTriggerAt].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("registration %s: parse trigger time: %w", token, err)
		}

		result = append(result, Registration{
			Token:     token,
			AlarmID:   alarmID,
			TriggerAt: triggerAt,
		})
	}

	return result, nil
}

// toProto converts registrations into a structpb document. Alarm ids are stored
// as strings since JSON numbers lose int64 precision.
func toProto(registrations []Registration) (*structpb.Struct, error) {
	sorted := slices.SortedFunc(slices.Values(registrations), func(a, b Registration) int {
		return cmp.Compare(a.Token, b.Token)
	})

	items := make([]any, 0, len(sorted))
	for _, registration := range sorted {
		items = append(items, map[string]any{
			fieldToken:     registration.Token,
			fieldAlarmID:   strconv.FormatInt(registration.AlarmID, 10),
			fieldTriggerAt: registration.TriggerAt.Format(time.RFC3339Nano),
		})
	}

	return structpb.NewStruct(map[string]any{
		fieldRegistrations: items,
	})
}
