package verifier

import (
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// CheckResult is the outcome of one authority check
type CheckResult struct {
	Name     string
	Expected string
	Actual   string
	Passed   bool
}

// Report holds the six check results in fixed order
type Report struct {
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
	Standard     string
	Results      []CheckResult
}

// AllPassed reports whether every check passed
func (r *Report) AllPassed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// PassCount returns the number of passed checks
func (r *Report) PassCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

// Failures returns the failed checks in report order
func (r *Report) Failures() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

const (
	nameWidth     = 26
	expectedWidth = 20
	statusWidth   = 6
)

func border() string {
	return "+" + strings.Repeat("-", nameWidth+2) +
		"+" + strings.Repeat("-", expectedWidth+2) +
		"+" + strings.Repeat("-", statusWidth+4) + "+"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Render writes the fixed-width table, the failure details and the summary line
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder

	b.WriteString(border() + "\n")
	fmt.Fprintf(&b, "| %-*s | %-*s | %-*s |\n", nameWidth, "Authority", expectedWidth, "Expected", statusWidth+2, "Status")
	b.WriteString(border() + "\n")
	for _, res := range r.Results {
		icon, status := "+", "PASS"
		if !res.Passed {
			icon, status = "!", "FAIL"
		}
		fmt.Fprintf(&b, "| %-*s | %-*s | %s %-*s |\n",
			nameWidth, truncate(res.Name, nameWidth),
			expectedWidth, truncate(res.Expected, expectedWidth),
			icon, statusWidth, status)
	}
	b.WriteString(border() + "\n")

	if failures := r.Failures(); len(failures) > 0 {
		b.WriteString("\nFAILED CHECKS:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s\n", f.Name)
			fmt.Fprintf(&b, "    Expected: %s\n", f.Expected)
			fmt.Fprintf(&b, "    Actual:   %s\n", f.Actual)
		}
	}

	fmt.Fprintf(&b, "\nResult: %d/%d checks passed\n", r.PassCount(), len(r.Results))
	if r.AllPassed() {
		b.WriteString("\nVERIFICATION PASSED: Token is in a trustless state.\n")
	} else {
		b.WriteString("\nVERIFICATION FAILED: One or more checks did not pass.\n")
		b.WriteString("Fix the issues above before proceeding with deployment.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
