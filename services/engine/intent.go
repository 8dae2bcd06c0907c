package engine

import (
	// Go Internal Packages
	"fmt"
	"math"
	"strings"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"
	"nfc-bank/policy"
)

type Mode int

const (
	Read Mode = iota
	Increase
	Decrease
	Repair
	History
)

var modeNames = map[Mode]string{
	Read:     "read",
	Increase: "increase",
	Decrease: "decrease",
	Repair:   "repair",
	History:  "history",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return Read, errors.InvalidParamsErr(fmt.Errorf("unknown mode %q", s))
}

// writes reports whether a tag in this mode is rewritten.
func (m Mode) writes() bool {
	return m == Increase || m == Decrease || m == Repair
}

func (m Mode) operation() models.OperationKind {
	switch m {
	case Increase:
		return models.OperationIncrease
	case Decrease:
		return models.OperationDecrease
	}
	return models.OperationRepair
}

// HolderSource selects where Repair takes the holder name from.
type HolderSource string

const (
	SearchDirectory HolderSource = "search"
	ManualEntry     HolderSource = "manual"
)

// Intent is an operator request: the mode plus the form parameters.
type Intent struct {
	Mode      Mode          `json:"-"`
	Amount    float64       `json:"amount"`
	Note      string        `json:"note,omitempty"`
	Overdraft policy.Policy `json:"overdraft,omitempty"`
	Source    HolderSource  `json:"source,omitempty"`
	Holder    string        `json:"holder,omitempty"`
}

func (i Intent) Validate() error {
	ve := errors.ValidationErrs()
	if _, ok := modeNames[i.Mode]; !ok {
		ve.Add("mode", "is unknown")
	}
	if !i.Mode.writes() {
		return ve.Err()
	}

	if math.IsNaN(i.Amount) || math.IsInf(i.Amount, 0) || i.Amount < 0 {
		ve.Add("amount", "must be a non-negative number")
	} else if i.Amount > math.MaxFloat32 {
		ve.Add("amount", "does not fit a card balance")
	}
	if i.Mode == Decrease {
		if _, err := policy.Parse(string(i.Overdraft)); err != nil {
			ve.Add("overdraft", "must be decline, zero or negative")
		}
	}
	if i.Mode == Repair {
		switch i.Source {
		case SearchDirectory, ManualEntry, "":
		default:
			ve.Add("source", "must be search or manual")
		}
	}
	return ve.Err()
}

// normalized fills in defaults so the cycle code sees explicit values.
func (i Intent) normalized() Intent {
	if i.Mode == Decrease {
		i.Overdraft, _ = policy.Parse(string(i.Overdraft))
	}
	if i.Mode == Repair && i.Source == "" {
		i.Source = SearchDirectory
	}
	return i
}
