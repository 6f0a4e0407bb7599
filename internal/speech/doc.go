// Package speech implements a streaming speech-to-text client over a websocket.
//
// The client sends {"type":"start","language":...} to begin an attempt and
// {"type":"stop"} to end it. The service answers with ready, partial, final and
// error messages that are translated into SayIt recognizer events.
package speech
