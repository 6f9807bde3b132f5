package filter

import (
	"encoding/json"
	"sort"

	"github.com/arthur-debert/casedb/internal/xpath"
)

// Session keys with a fixed meaning. Every other key is a session datum.
const (
	KeyDomain            = "domain"
	KeyUsername          = "username"
	KeyUserID            = "user_id"
	KeyDeviceID          = "device_id"
	KeyAppVersion        = "app_version"
	KeyAdditionalFilters = "additional_filters"
)

// Session is the caller context of one filter evaluation. The json tags name
// the fields in validation errors; encoding goes through MarshalJSON.
type Session struct {
	Domain            string `json:"domain" validate:"required"`
	Username          string `json:"username" validate:"required"`
	UserID            string `json:"user_id"`
	DeviceID          string `json:"device_id"`
	AppVersion        string `json:"app_version"`
	AdditionalFilters map[string]string // Server-side criteria for the bulk load
	Extra             map[string]string // Remaining session variables
}

// UnmarshalJSON decodes a flat session_data object. Unknown keys land in
// Extra; non-string values keep their JSON text.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Session{}
	for key, value := range raw {
		if key == KeyAdditionalFilters {
			filters, err := decodeFilters(value)
			if err != nil {
				return err
			}
			s.AdditionalFilters = filters
			continue
		}

		str := scalar(value)
		switch key {
		case KeyDomain:
			s.Domain = str
		case KeyUsername:
			s.Username = str
		case KeyUserID:
			s.UserID = str
		case KeyDeviceID:
			s.DeviceID = str
		case KeyAppVersion:
			s.AppVersion = str
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]string)
			}
			s.Extra[key] = str
		}
	}
	return nil
}

// MarshalJSON writes the session back as a flat object
func (s Session) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+6)
	for k, v := range s.Extra {
		out[k] = v
	}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set(KeyDomain, s.Domain)
	set(KeyUsername, s.Username)
	set(KeyUserID, s.UserID)
	set(KeyDeviceID, s.DeviceID)
	set(KeyAppVersion, s.AppVersion)
	if len(s.AdditionalFilters) > 0 {
		out[KeyAdditionalFilters] = s.AdditionalFilters
	}
	return json.Marshal(out)
}

func decodeFilters(data json.RawMessage) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for k, v := range raw {
		filters[k] = scalar(v)
	}
	return filters, nil
}

func scalar(data json.RawMessage) string {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str
	}
	if string(data) == "null" {
		return ""
	}
	return string(data)
}

// data returns the session data variables, domain included
func (s Session) data() map[string]string {
	vars := make(map[string]string, len(s.Extra)+1)
	for k, v := range s.Extra {
		vars[k] = v
	}
	if s.Domain != "" {
		vars[KeyDomain] = s.Domain
	}
	return vars
}

// instanceRoot renders the session as
// <session><data><var/>...</data><context><deviceid/>...</context></session>
func (s Session) instanceRoot() *xpath.Element {
	vars := s.data()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	data := xpath.NewElement("data", "")
	for _, name := range names {
		data.Append(xpath.NewElement(name, vars[name]))
	}

	context := xpath.NewElement("context", "").Append(
		xpath.NewElement("deviceid", s.DeviceID),
		xpath.NewElement("appversion", s.AppVersion),
		xpath.NewElement("username", s.Username),
		xpath.NewElement("userid", s.UserID),
	)

	return xpath.NewElement("session", "").Append(data, context)
}
