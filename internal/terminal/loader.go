package terminal

import (
	"time"

	"github.com/briandowns/spinner"
)

// Loader displays a transient status message while fn runs and returns fn's
// error once it finishes. The spinner disappears when the enclosed
// operation completes, whatever the outcome.
func (t *Term) Loader(message string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(t.out))
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()

	return fn()
}
