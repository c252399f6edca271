package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/twquote/internal/model"
)

// rocYearOffset converts Republic of China era years to Gregorian years.
const rocYearOffset = 1911

// ParseROCDate parses "114/09/19" (ROC calendar) to a Taipei date.
// Footnote markers such as "＊" are ignored.
func ParseROCDate(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), "*＊")
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("parse roc date %q: want yyy/mm/dd", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse roc date %q: %w", s, err)
		}
		nums[i] = n
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return time.Time{}, fmt.Errorf("parse roc date %q: out of range", s)
	}
	return time.Date(nums[0]+rocYearOffset, time.Month(nums[1]), nums[2], 0, 0, 0, 0, model.Taipei), nil
}

// FormatROCMonth formats t as "114/09" for the TPEx query parameter.
func FormatROCMonth(t time.Time) string {
	t = t.In(model.Taipei)
	return fmt.Sprintf("%d/%02d", t.Year()-rocYearOffset, int(t.Month()))
}
