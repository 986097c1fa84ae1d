package entity

// Link is a hypermedia link returned by the sessions resource.
type Link struct {
	Rel    string `json:"rel" bson:"rel"`
	Href   string `json:"href" bson:"href"`
	Method string `json:"method,omitempty" bson:"method,omitempty"`
}

// DropInSession is a gateway-side payment session. It is created once per
// checkout attempt, immutable after creation, and persisted as a blob on the
// order transaction since the session itself is stateful only at the gateway.
type DropInSession struct {
	Id    string `json:"id" bson:"id"`
	Links []Link `json:"links" bson:"links"`
	// HppUrl is the href of the first link with rel "hpp"; empty if absent
	HppUrl string `json:"hppUrl,omitempty" bson:"hpp_url,omitempty"`
}

// NewDropInSession builds a session with the derived hosted-payment-page URL.
func NewDropInSession(id string, links []Link) *DropInSession {
	session := &DropInSession{
		Id:    id,
		Links: links,
	}
	session.HppUrl = session.LinkByRel("hpp")
	return session
}

// LinkByRel returns the href of the first link with the given relation,
// or an empty string when no such link exists.
func (s *DropInSession) LinkByRel(rel string) string {
	for _, link := range s.Links {
		if link.Rel == rel {
			return link.Href
		}
	}
	return ""
}
