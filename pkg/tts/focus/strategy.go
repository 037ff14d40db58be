package focus

import "fmt"

// strategy hides which subsystem API is in use.
type strategy interface {
	request() Grant
	abandon()
	name() string
}

type legacyStrategy struct {
	sys      LegacySubsystem
	listener Listener
	attrs    Attributes
	gain     Gain
}

func (s *legacyStrategy) request() Grant {
	return s.sys.RequestFocus(s.listener, s.attrs, s.gain)
}

func (s *legacyStrategy) abandon() {
	s.sys.AbandonFocus(s.listener)
}

func (s *legacyStrategy) name() string { return "legacy" }

type requestStrategy struct {
	sys RequestSubsystem
	req *Request
}

// newRequestStrategy panics with ErrUnsupportedFocusAPI when sys is below
// MinRequestAPILevel. Callers are expected to check the level first.
func newRequestStrategy(sys RequestSubsystem, l Listener, attrs Attributes, gain Gain) *requestStrategy {
	if lvl := sys.APILevel(); lvl < MinRequestAPILevel {
		panic(fmt.Errorf("%w: api level %d, need %d", ErrUnsupportedFocusAPI, lvl, MinRequestAPILevel))
	}
	return &requestStrategy{
		sys: sys,
		req: &Request{
			Attributes: attrs,
			Gain:       gain,
			Listener:   l,
		},
	}
}

func (s *requestStrategy) request() Grant {
	return s.sys.RequestFocusWith(s.req)
}

func (s *requestStrategy) abandon() {
	s.sys.AbandonFocusRequest(s.req)
}

func (s *requestStrategy) name() string { return "request" }

// selectStrategy picks the API once. With APIAuto the request API is used
// when sys implements it at a supported level.
func selectStrategy(sys any, api API, l Listener, attrs Attributes, gain Gain) strategy {
	rs, hasRequest := sys.(RequestSubsystem)
	ls, hasLegacy := sys.(LegacySubsystem)

	switch api {
	case APIRequest:
		if !hasRequest {
			panic(fmt.Errorf("%w: %T has no request API", ErrUnsupportedFocusAPI, sys))
		}
		return newRequestStrategy(rs, l, attrs, gain)
	case APIAuto:
		if hasRequest && rs.APILevel() >= MinRequestAPILevel {
			return newRequestStrategy(rs, l, attrs, gain)
		}
	}

	if !hasLegacy {
		panic(fmt.Errorf("focus: %T implements no usable focus API", sys))
	}
	return &legacyStrategy{sys: ls, listener: l, attrs: attrs, gain: gain}
}
