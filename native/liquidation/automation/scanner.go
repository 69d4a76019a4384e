package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"stablecore/core/events"
	"stablecore/crypto"
	"stablecore/native/liquidation"
)

// DefaultWindowSize bounds the per-cycle work of the scanner.
const DefaultWindowSize = 100

var (
	// ErrNilEngine indicates the scanner has no liquidation engine wired.
	ErrNilEngine = errors.New("automation: engine not configured")
	// ErrNilCursor indicates the scanner has no cursor store wired.
	ErrNilCursor = errors.New("automation: cursor store not configured")
)

// FlaggedPosition is one unhealthy user discovered during a scan window.
type FlaggedPosition struct {
	User         string `json:"user"`
	HealthFactor string `json:"healthFactor"`
}

// ScanReport is the opaque payload handed from the scan phase to the execute
// phase. The scheduler only forwards it.
type ScanReport struct {
	RunID      string            `json:"runId"`
	Offset     uint64            `json:"offset"`
	TotalUsers uint64            `json:"totalUsers"`
	Flagged    []FlaggedPosition `json:"flagged"`
	Skipped    int               `json:"skipped,omitempty"`
}

// AttemptResult records the isolated outcome of one protocol liquidation
// attempt during the execute phase.
type AttemptResult struct {
	User        string
	SeizedAsset string
	DebtAsset   string
	Repaid      *big.Int
	Err         error
}

// Success reports whether the attempt committed.
func (r AttemptResult) Success() bool { return r.Err == nil }

// Scanner walks the full user set in fixed-size windows, flags unhealthy
// positions and triggers protocol self-liquidation for positions that cannot
// pay a market bonus. It keeps no state between calls apart from the
// persisted cursor.
type Scanner struct {
	mu      sync.Mutex
	engine  *liquidation.Engine
	cursor  CursorStore
	window  uint64
	emitter events.Emitter
}

// NewScanner constructs a scanner over the given engine and cursor store.
func NewScanner(engine *liquidation.Engine, cursor CursorStore, window uint64) *Scanner {
	if window == 0 {
		window = DefaultWindowSize
	}
	return &Scanner{
		engine:  engine,
		cursor:  cursor,
		window:  window,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Scanner) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// WindowSize returns the configured scan window.
func (s *Scanner) WindowSize() uint64 { return s.window }

// Cursor returns the persisted scan offset.
func (s *Scanner) Cursor() (uint64, error) {
	if s.cursor == nil {
		return 0, ErrNilCursor
	}
	return s.cursor.Load()
}

// Scan walks one window of the user set and reports whether remediation work
// is needed. The cursor advances modulo the total user count exactly once,
// after processing, so consecutive cycles cover every user.
func (s *Scanner) Scan() (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return false, nil, ErrNilEngine
	}
	if s.cursor == nil {
		return false, nil, ErrNilCursor
	}

	offset, err := s.cursor.Load()
	if err != nil {
		return false, nil, err
	}
	users, total, err := s.engine.UserBatch(s.window, offset)
	if err != nil {
		return false, nil, err
	}
	if total == 0 {
		return false, nil, nil
	}
	if offset >= total {
		// The user set shrank since the last cycle; wrap and refetch so the
		// cursor never points past the end.
		offset = offset % total
		users, total, err = s.engine.UserBatch(s.window, offset)
		if err != nil {
			return false, nil, err
		}
	}

	report := ScanReport{
		RunID:      uuid.New().String(),
		Offset:     offset,
		TotalUsers: total,
	}
	minimum := s.engine.MinimumHealthFactor()
	for _, user := range users {
		health, err := s.engine.HealthFactor(user)
		if err != nil {
			report.Skipped++
			continue
		}
		if health.Cmp(minimum) < 0 {
			report.Flagged = append(report.Flagged, FlaggedPosition{
				User:         user.String(),
				HealthFactor: health.String(),
			})
		}
	}

	next := (offset + s.window) % total
	if err := s.cursor.Store(next); err != nil {
		return false, nil, err
	}

	s.emitter.Emit(events.ScanCompleted{
		RunID:   report.RunID,
		Offset:  offset,
		Flagged: len(report.Flagged),
		Total:   total,
	})

	if len(report.Flagged) == 0 {
		return false, nil, nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return false, nil, fmt.Errorf("encode scan report: %w", err)
	}
	return true, payload, nil
}

// Execute processes a scan payload: for every flagged user it enumerates the
// (debt, collateral) pairs whose market bonus would be insufficient and
// attempts a protocol self-liquidation for each. Attempts are isolated; one
// failure never aborts the remaining pairs.
func (s *Scanner) Execute(payload []byte) ([]AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, ErrNilEngine
	}

	var report ScanReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode scan report: %w", err)
	}

	assets := s.engine.AllowedAssets()
	var results []AttemptResult
	for _, flagged := range report.Flagged {
		user, err := crypto.DecodeAddress(flagged.User)
		if err != nil {
			results = append(results, AttemptResult{User: flagged.User, Err: err})
			continue
		}
		for _, debtAsset := range assets {
			for _, seizedAsset := range assets {
				borrowed, err := s.engine.AmountOfTokenBorrowed(user, debtAsset)
				if err != nil || borrowed.Sign() == 0 {
					break
				}
				collateral, err := s.engine.CollateralBalanceOfUser(user, seizedAsset)
				if err != nil || collateral.Sign() == 0 {
					continue
				}
				breakdown, err := s.engine.PreviewBonus(user, seizedAsset, debtAsset)
				if err != nil {
					results = append(results, AttemptResult{
						User:        flagged.User,
						SeizedAsset: seizedAsset,
						DebtAsset:   debtAsset,
						Err:         err,
					})
					continue
				}
				if breakdown.Sufficient() {
					// A market liquidator is adequately paid here; leave the
					// pair to the open market.
					continue
				}
				result := AttemptResult{
					User:        flagged.User,
					SeizedAsset: seizedAsset,
					DebtAsset:   debtAsset,
				}
				receipt, err := s.engine.ProtocolLiquidate(user, seizedAsset, debtAsset, borrowed)
				if err != nil {
					result.Err = err
				} else {
					result.Repaid = receipt.DebtRepaid
				}
				results = append(results, result)
			}
		}
	}
	return results, nil
}
