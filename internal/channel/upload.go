package channel

import "context"

// Upload wraps interactive uploads (and other externally supplied buffers,
// like rendered HR-feed documents) as a one-shot candidate sequence. The
// buffer is transient; there is nothing to move or delete afterwards.
type Upload struct {
	Candidates []Candidate
}

func (u *Upload) Name() string { return "upload" }

// SharedSource: each Upload carries its own transient buffers, so
// concurrent HTTP uploads never contend for a source.
func (u *Upload) SharedSource() bool { return false }

func (u *Upload) Scan(ctx context.Context, emit func(Candidate) error) error {
	for _, c := range u.Candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (u *Upload) Finalize(Candidate, Outcome) error { return nil }
