package channel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/fleetremind/core/model"
)

var (
	// ErrConfigurationIncomplete is returned when required settings are missing.
	ErrConfigurationIncomplete = errors.New("configuration incomplete")
	// ErrInvalidRecipient is returned when a recipient does not fit the channel format.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrFeatureDisabled is returned when the channel was compiled out.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrProviderError wraps downstream provider failures.
	ErrProviderError = errors.New("provider error")
)

// ProviderError carries downstream diagnostics. It matches ErrProviderError.
type ProviderError struct {
	Channel    model.Channel
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s provider error", e.Channel)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", truncate(e.Body, 256))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderError }

// Incomplete builds an ErrConfigurationIncomplete naming the missing fields.
func Incomplete(ch model.Channel, missing ...string) error {
	return fmt.Errorf("%s: %w: missing %s", ch, ErrConfigurationIncomplete, strings.Join(missing, ", "))
}

// InvalidRecipient builds an ErrInvalidRecipient for value.
func InvalidRecipient(ch model.Channel, value string) error {
	return fmt.Errorf("%s: %w %q", ch, ErrInvalidRecipient, value)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
