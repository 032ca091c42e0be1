package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Registration-time failures.
var (
	ErrNoStrategy            = errors.New("registration needs a type, a factory or an instance")
	ErrNotConstructible      = errors.New("type cannot be constructed reflectively")
	ErrNotAssignable         = errors.New("implementation is not assignable to the service type")
	ErrInstanceLifetime      = errors.New("fixed instances must be registered as singleton")
	ErrDuplicateRegistration = errors.New("service type already registered")
	ErrNilServiceType        = errors.New("service type is nil")
)

// Resolution-time failures.
var (
	ErrCircularDependency = errors.New("circular dependency detected")
	ErrNilFactoryResult   = errors.New("factory returned nil")
	ErrNilConstruction    = errors.New("construction produced nil")
	ErrUnknownLifetime    = errors.New("unknown lifetime")
	ErrTypeMismatch       = errors.New("resolved value has the wrong type")
	ErrMissingDependency  = errors.New("required dependency is not available")
	ErrLazyUnbound        = errors.New("lazy handle was not produced by a resolver")
)

// RegistrationError is returned while configuring a Container.
type RegistrationError struct {
	ServiceType reflect.Type
	Err         error
}

func (e *RegistrationError) Error() string {
	if e.ServiceType == nil {
		return "container: register: " + e.Err.Error()
	}
	return fmt.Sprintf("container: register %s: %v", e.ServiceType, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ResolutionError is returned while resolving a service. Chain holds the
// service types that were under construction when the failure happened,
// outermost first.
type ResolutionError struct {
	ServiceType reflect.Type
	Chain       []reflect.Type
	Err         error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("container: resolve ")
	if e.ServiceType != nil {
		b.WriteString(e.ServiceType.String())
	} else {
		b.WriteString("<nil>")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if len(e.Chain) > 0 {
		names := make([]string, len(e.Chain))
		for i, t := range e.Chain {
			names[i] = t.String()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(names, " -> "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func registrationError(t reflect.Type, err error) *RegistrationError {
	return &RegistrationError{ServiceType: t, Err: err}
}

// resolutionError wraps err unless it already is a ResolutionError raised
// deeper in the graph, which carries the more precise chain.
func resolutionError(t reflect.Type, chain []reflect.Type, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return &ResolutionError{ServiceType: t, Chain: chain, Err: err}
}
