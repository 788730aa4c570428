package oddsapi

// credits.go — credit governor for the odds feed.
//
// The odds API bills per request against a monthly credit pool and reports
// usage in response headers. The governor keeps a small JSON state file and
// refuses to spend below a reserve or past a daily call cap. Writes are
// atomic (write temp + rename) so a crash can't corrupt the budget state.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrInsufficientCredits means the remaining pool is at or below the
// configured reserve: no network call was made.
var ErrInsufficientCredits = errors.New("oddsapi: credit reserve reached")

// DailyLimitError means the daily call cap was hit. ResumeAt is the next
// daily reset boundary (UTC midnight).
type DailyLimitError struct {
	Calls    int
	ResumeAt time.Time
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("oddsapi: daily call limit reached (%d calls, resume %s)",
		e.Calls, e.ResumeAt.Format(time.RFC3339))
}

// CreditState is the persisted budget snapshot, read before and written
// after every odds API call.
type CreditState struct {
	Remaining  int       `json:"remaining"`
	Used       int       `json:"used"`
	DailyCalls int       `json:"daily_calls"`
	DailyDate  string    `json:"daily_date"` // YYYY-MM-DD (UTC)
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreditStore owns the credit state file and the governor checks.
type CreditStore struct {
	path          string
	minReserve    int
	dailyMax      int
	warnThreshold int

	mu    sync.Mutex
	state CreditState
	now   func() time.Time
}

// NewCreditStore loads (or initializes) the state file at path.
// A missing file starts with an unknown (optimistic) balance: the first
// real call fills in the headers.
func NewCreditStore(path string, minReserve, dailyMax, warnThreshold int) (*CreditStore, error) {
	cs := &CreditStore{
		path:          path,
		minReserve:    minReserve,
		dailyMax:      dailyMax,
		warnThreshold: warnThreshold,
		now:           time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cs.state = CreditState{Remaining: -1}
	case err != nil:
		return nil, fmt.Errorf("oddsapi.NewCreditStore: read %q: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cs.state); err != nil {
			return nil, fmt.Errorf("oddsapi.NewCreditStore: parse %q: %w", path, err)
		}
	}
	return cs, nil
}

// Acquire checks the governor before a call. It returns
// ErrInsufficientCredits or *DailyLimitError without touching the network.
func (cs *CreditStore) Acquire() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rollDailyLocked()

	if cs.state.Remaining >= 0 && cs.state.Remaining <= cs.minReserve {
		return ErrInsufficientCredits
	}
	if cs.state.DailyCalls >= cs.dailyMax {
		return &DailyLimitError{
			Calls:    cs.state.DailyCalls,
			ResumeAt: nextUTCMidnight(cs.now()),
		}
	}
	return nil
}

// Record updates the state from the response usage headers after a
// successful call and persists it. It returns true if the remaining
// balance dropped below the warning threshold.
func (cs *CreditStore) Record(remaining, used int) (lowCredits bool, err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rollDailyLocked()
	cs.state.Remaining = remaining
	cs.state.Used = used
	cs.state.DailyCalls++
	cs.state.UpdatedAt = cs.now().UTC()

	if err := cs.saveLocked(); err != nil {
		return false, err
	}
	return remaining >= 0 && remaining < cs.warnThreshold, nil
}

// Snapshot returns a copy of the current state.
func (cs *CreditStore) Snapshot() CreditState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// rollDailyLocked resets the daily counter when the UTC date changes.
func (cs *CreditStore) rollDailyLocked() {
	today := cs.now().UTC().Format("2006-01-02")
	if cs.state.DailyDate != today {
		cs.state.DailyDate = today
		cs.state.DailyCalls = 0
	}
}

// saveLocked writes the state atomically: temp file in the same directory,
// then rename over the target.
func (cs *CreditStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o755); err != nil {
		return fmt.Errorf("oddsapi: mkdir state dir: %w", err)
	}

	data, err := json.MarshalIndent(cs.state, "", "  ")
	if err != nil {
		return fmt.Errorf("oddsapi: marshal credit state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cs.path), ".credits-*")
	if err != nil {
		return fmt.Errorf("oddsapi: temp credit file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("oddsapi: write credit state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("oddsapi: close credit state: %w", err)
	}
	if err := os.Rename(tmpName, cs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("oddsapi: rename credit state: %w", err)
	}
	return nil
}

func nextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
