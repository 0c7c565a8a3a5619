package snapfile

import (
	"bufio"
	"encoding/json"
	"os"
)

// PendingInline is one record in a pending inline snapshot batch
// file: a JSON object per line, written by the test runtime.
type PendingInline struct {
	RunID string    `json:"run_id"`
	Line  int       `json:"line"`
	Old   *Snapshot `json:"old,omitempty"`
	New   *Snapshot `json:"new,omitempty"`
}

// LoadPendingBatch reads a pending inline batch file. Only records
// from the last run in the file are kept, so stale entries from an
// earlier test run never resurface. Malformed lines are skipped.
func LoadPendingBatch(path string) ([]PendingInline, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	var batch []PendingInline
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec PendingInline
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		batch = append(batch, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		lastRun := batch[len(batch)-1].RunID
		kept := batch[:0]
		for _, rec := range batch {
			if rec.RunID == lastRun {
				kept = append(kept, rec)
			}
		}
		batch = kept
	}
	return batch, nil
}

// SavePendingBatch rewrites a pending inline batch file with the
// given records, or removes it when the batch is empty.
func SavePendingBatch(path string, batch []PendingInline) error {
	if len(batch) == 0 {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range batch {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return f.Sync()
}
