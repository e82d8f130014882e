package media

import (
	"fmt"
	"path/filepath"
	"time"
)

// DateLayout is the timestamp format used in video names.
const DateLayout = "2006-01-02_15.04.05"

// VideoName builds the local name for a pulled video:
// <prefix>_<NN>_[<date>_]<original basename>.
func VideoName(prefix string, number int, pulled string, stamp time.Time, withDate bool) string {
	date := ""
	if withDate {
		date = stamp.Format(DateLayout) + "_"
	}
	return fmt.Sprintf("%s_%02d_%s%s", prefix, number, date, filepath.Base(pulled))
}
