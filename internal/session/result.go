package session

import "encoding/json"

type LoadState string

const (
	Loaded  LoadState = "loaded"
	Offline LoadState = "offline"
	Failed  LoadState = "failed"
)

// Result is the outcome of a load that may degrade. Offline carries a
// synthesized stand-in that must not be written back to the store. Failed
// carries no value.
type Result[T any] struct {
	State  LoadState
	Value  T
	Reason string
}

func LoadedResult[T any](v T) Result[T] {
	return Result[T]{State: Loaded, Value: v}
}

func OfflineResult[T any](placeholder T, reason string) Result[T] {
	return Result[T]{State: Offline, Value: placeholder, Reason: reason}
}

func FailedResult[T any](reason string) Result[T] {
	return Result[T]{State: Failed, Reason: reason}
}

func (r Result[T]) IsLoaded() bool { return r.State == Loaded }

// Get returns the value and whether it is usable (loaded or placeholder).
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.State == Loaded || r.State == Offline
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		State  LoadState `json:"state"`
		Value  *T        `json:"value,omitempty"`
		Reason string    `json:"reason,omitempty"`
	}{State: r.State, Reason: r.Reason}
	if r.State != Failed {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}
