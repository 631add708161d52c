package body

import "fmt"

// Origin identifies the upstream connection a producer is reading
// from. It is carried into ResponseTimeoutError and every warning log
// line so an operator can tell which backend stalled.
type Origin struct {
	ID   string
	Host string
}

func (o Origin) String() string {
	return fmt.Sprintf("%s(%s)", o.ID, o.Host)
}
