package container

import (
	"fmt"
	"strings"
)

// Lifetime is the reuse policy of a registration.
type Lifetime int

const (
	// Singleton instances are shared by every Resolver built from one Container.
	Singleton Lifetime = iota + 1
	// Scoped instances are shared within one Resolver.
	Scoped
	// Transient instances are never reused.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// ParseLifetime turns "singleton", "scoped" or "transient" into a Lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return Singleton, nil
	case "scoped":
		return Scoped, nil
	case "transient":
		return Transient, nil
	}
	return 0, fmt.Errorf("container: unknown lifetime %q", s)
}

// DuplicateStrategy decides what happens when a service type is registered twice.
type DuplicateStrategy int

const (
	// Override replaces the previous registration.
	Override DuplicateStrategy = iota
	// Ignore keeps the first registration and drops the new one.
	Ignore
	// Throw rejects the second registration with a RegistrationError.
	Throw
)

func (s DuplicateStrategy) String() string {
	switch s {
	case Override:
		return "override"
	case Ignore:
		return "ignore"
	case Throw:
		return "throw"
	default:
		return fmt.Sprintf("duplicates(%d)", int(s))
	}
}

// ParseDuplicateStrategy turns "override", "ignore" or "throw" into a strategy.
func ParseDuplicateStrategy(s string) (DuplicateStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "override":
		return Override, nil
	case "ignore":
		return Ignore, nil
	case "throw":
		return Throw, nil
	}
	return 0, fmt.Errorf("container: unknown duplicate strategy %q", s)
}
