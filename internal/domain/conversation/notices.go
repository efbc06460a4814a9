package conversation

import (
	"fmt"
	"strings"
)

// JoinNames renders "X", "X and Y" or "X, Y, and Z".
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

func AddedNotice(actor string, added []string) string {
	return fmt.Sprintf("%s added %s to the conversation.", actor, JoinNames(added))
}

func RemovedNotice(actor, target string) string {
	return fmt.Sprintf("%s removed %s from the conversation.", actor, target)
}

func LeftNotice(actor string) string {
	return fmt.Sprintf("%s left the conversation.", actor)
}

// RenameNotice describes a name change. It returns "" when nothing changed.
func RenameNotice(actor string, change Rename) string {
	switch {
	case !change.Changed():
		return ""
	case change.Old == "":
		return fmt.Sprintf("%s named the group %q.", actor, change.New)
	case change.New == "":
		return fmt.Sprintf("%s removed the group name (was %q).", actor, change.Old)
	default:
		return fmt.Sprintf("%s renamed the group from %q to %q.", actor, change.Old, change.New)
	}
}
