package applications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// presence records how a known member appeared in the decoded JSON.
type presence uint8

const (
	present presence = iota + 1
	explicitNull
)

// Contact identifies a person attached to an application.
// Extra carries members beyond name and email.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`

	Extra map[string]json.RawMessage `json:"-"`

	seen map[string]presence
}

var contactMembers = []string{"name", "email"}

// Application is a single form submission.
// Extra carries top-level members the submitter sent beyond the known fields;
// they are stored and returned untouched.
type Application struct {
	ID             string    `json:"id"`
	PointOfContact *Contact  `json:"pointOfContact"`
	Contributors   []Contact `json:"contributors"`
	Category       string    `json:"category"`
	Idea           string    `json:"idea"`
	Audience       string    `json:"audience"`
	Finances       string    `json:"finances"`
	Goal           string    `json:"goal"`
	Mission        string    `json:"mission"`
	WhyThisWhyNow  string    `json:"whyThisWhyNow"`

	Extra map[string]json.RawMessage `json:"-"`

	seen map[string]presence
}

var applicationMembers = []string{
	"id", "pointOfContact", "contributors", "category", "idea",
	"audience", "finances", "goal", "mission", "whyThisWhyNow",
}

type plainContact Contact

// UnmarshalJSON decodes a contact object, remembering which members were sent.
func (c *Contact) UnmarshalJSON(data []byte) error {
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("%w: contact must be a JSON object", ErrInvalidPayload)
	}

	var decoded Contact
	if err := json.Unmarshal(data, (*plainContact)(&decoded)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	decoded.seen, decoded.Extra = scanMembers(doc, contactMembers)

	*c = decoded
	return nil
}

// MarshalJSON emits the members that were sent or set, then the extras.
func (c Contact) MarshalJSON() ([]byte, error) {
	return encodeObject([]member{
		{name: "name", value: c.Name, zero: c.Name == ""},
		{name: "email", value: c.Email, zero: c.Email == ""},
	}, c.seen, c.Extra)
}

// Clone returns a deep copy of the contact.
func (c Contact) Clone() Contact {
	out := c
	out.Extra = cloneExtra(c.Extra)
	out.seen = cloneSeen(c.seen)
	return out
}

// plain drops the methods of Application so the default decoder can be reused.
type plain Application

// UnmarshalJSON decodes a submission. The payload must be an object; id may be
// a string or a number, and numbers keep their literal text. Zero, null and
// the empty string all mean "no id".
func (a *Application) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: malformed JSON", ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}

	var decoded Application
	aux := struct {
		ID json.RawMessage `json:"id"`
		*plain
	}{plain: (*plain)(&decoded)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	id, err := parseID(gjson.ParseBytes(aux.ID))
	if err != nil {
		return err
	}
	decoded.ID = id

	decoded.seen, decoded.Extra = scanMembers(doc, applicationMembers)
	// the id is always emitted once the store has assigned one
	delete(decoded.seen, "id")
	if len(decoded.seen) == 0 {
		decoded.seen = nil
	}

	*a = decoded
	return nil
}

// MarshalJSON encodes the known fields in declaration order followed by the
// extra members in key order. A known field is emitted when it holds a value
// or when the decoded payload carried it, so explicit "" and [] survive.
func (a Application) MarshalJSON() ([]byte, error) {
	contributors := a.Contributors
	if contributors == nil {
		contributors = []Contact{}
	}
	return encodeObject([]member{
		{name: "id", value: a.ID, zero: a.ID == ""},
		{name: "pointOfContact", value: a.PointOfContact, zero: a.PointOfContact == nil},
		{name: "contributors", value: contributors, zero: len(a.Contributors) == 0},
		{name: "category", value: a.Category, zero: a.Category == ""},
		{name: "idea", value: a.Idea, zero: a.Idea == ""},
		{name: "audience", value: a.Audience, zero: a.Audience == ""},
		{name: "finances", value: a.Finances, zero: a.Finances == ""},
		{name: "goal", value: a.Goal, zero: a.Goal == ""},
		{name: "mission", value: a.Mission, zero: a.Mission == ""},
		{name: "whyThisWhyNow", value: a.WhyThisWhyNow, zero: a.WhyThisWhyNow == ""},
	}, a.seen, a.Extra)
}

// Clone returns a deep copy of the application.
func (a Application) Clone() Application {
	out := a
	if a.PointOfContact != nil {
		poc := a.PointOfContact.Clone()
		out.PointOfContact = &poc
	}
	if a.Contributors != nil {
		out.Contributors = make([]Contact, len(a.Contributors))
		for i, contributor := range a.Contributors {
			out.Contributors[i] = contributor.Clone()
		}
	}
	out.Extra = cloneExtra(a.Extra)
	out.seen = cloneSeen(a.seen)
	return out
}

func parseID(v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.Str, nil
	case gjson.Number:
		if v.Num == 0 {
			return "", nil
		}
		return v.Raw, nil
	default:
		return "", fmt.Errorf("%w: id must be a string or a number", ErrInvalidPayload)
	}
}

// scanMembers walks an object once, noting which known members appeared and
// collecting the raw bytes of everything else.
func scanMembers(doc gjson.Result, known []string) (map[string]presence, map[string]json.RawMessage) {
	var (
		seen  map[string]presence
		extra map[string]json.RawMessage
	)
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if isKnown(name, known) {
			if seen == nil {
				seen = make(map[string]presence)
			}
			if value.Type == gjson.Null {
				seen[name] = explicitNull
			} else {
				seen[name] = present
			}
			return true
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[name] = json.RawMessage(value.Raw)
		return true
	})
	return seen, extra
}

type member struct {
	name  string
	value any
	zero  bool
}

func encodeObject(members []member, seen map[string]presence, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, raw []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(key)
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(raw)
	}

	known := make([]string, 0, len(members))
	for _, m := range members {
		known = append(known, m.name)

		state := seen[m.name]
		if m.zero && state == explicitNull {
			write(m.name, []byte("null"))
			continue
		}
		if m.zero && state != present {
			continue
		}
		raw, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		write(m.name, raw)
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		if isKnown(key, known) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		write(key, extra[key])
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isKnown(name string, known []string) bool {
	for _, k := range known {
		if k == name {
			return true
		}
	}
	return false
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(extra))
	for key, value := range extra {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}

func cloneSeen(seen map[string]presence) map[string]presence {
	if seen == nil {
		return nil
	}
	out := make(map[string]presence, len(seen))
	for key, state := range seen {
		out[key] = state
	}
	return out
}
