package postprocess

import (
	"fmt"

	"fallwatch/internal/model"
)

// OtherClassName labels class ids the configured names do not cover.
const OtherClassName = "Other"

// ClassName looks up the display name of a class id.
func ClassName(names []string, classID int) string {
	if classID >= 0 && classID < len(names) {
		return names[classID]
	}
	return OtherClassName
}

// Label renders the overlay text for a detection, e.g. "Fall 91.0%".
func Label(names []string, d model.Detection) string {
	return fmt.Sprintf("%s %.1f%%", ClassName(names, d.ClassID), d.Confidence*100)
}
