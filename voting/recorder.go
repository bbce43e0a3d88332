package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/electiond/storage"
)

// ErrDuplicateBallot is returned by Recorder.Record when the voter already
// had a final flag. The transaction record is written anyway.
var ErrDuplicateBallot = errors.New("final vote flag already exists")

// ErrIncompleteRecord is returned by Recorder.Record when the final flag was
// written but the transaction record was not.
var ErrIncompleteRecord = errors.New("vote flag written without transaction record")

// Recorder writes the records of a confirmed ballot: the final vote flag,
// keyed by voter, and the transaction record, keyed by transaction hash.
// No key or value links a voter with a transaction.
type Recorder struct {
	stg *storage.Storage
}

func NewRecorder(stg *storage.Storage) *Recorder {
	return &Recorder{stg: stg}
}

// Record writes the final vote flag first and then the transaction record.
func (r *Recorder) Record(ctx context.Context, electionID, userID, txHash string, now time.Time) error {
	var dup error
	if err := r.stg.SetVoteFlag(ctx, electionID, userID, now); err != nil {
		if !errors.Is(err, storage.ErrKeyAlreadyExists) {
			return fmt.Errorf("write vote flag: %w", err)
		}
		dup = ErrDuplicateBallot
	}
	if err := r.stg.SetVoteTx(ctx, electionID, txHash, now); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteRecord, err)
	}
	return dup
}
