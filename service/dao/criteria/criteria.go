package criteria

import (
	"github.com/viant/tripmanager/service/dao"
)

// FilterByStatus returns true when status satisfies every status parameter.
// Parameters with other names are ignored.
func FilterByStatus(status string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != dao.ParameterStatus {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			if status != actual {
				return false
			}
		case []string:
			if len(actual) == 0 {
				continue
			}
			matched := false
			for _, candidate := range actual {
				if status == candidate {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}
