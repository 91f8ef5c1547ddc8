package pq

import "fmt"

// ConnectivityError reports a failure to reach or authenticate to a database
// endpoint. It carries the host only, never credentials.
type ConnectivityError struct {
	Err  error
	Host string
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ResourceCreationError reports a failed attempt to create a replication
// resource (publication or subscription). An already existing resource is not
// an error; callers detect it beforehand and skip creation.
type ResourceCreationError struct {
	Err      error
	Resource string
	Name     string
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("cannot create %s %q: %v", e.Resource, e.Name, e.Err)
}

func (e *ResourceCreationError) Unwrap() error {
	return e.Err
}
