package recordset

// requestState is the one-shot configuration of the next fetch on a
// session. Every drain returns the current value and resets the field.
type requestState struct {
	relatives map[string]Override
	depth     Depth
	mode      Representation
	orders    []Order
	window    *window
}

type window struct{ limit, offset int }

// pending is the drained state of one fetch.
type pending struct {
	relatives map[string]Override
	depth     Depth
	mode      Representation
	orders    []Order
	window    *window
}

func (s *requestState) setRelative(name string, o Override) {
	if s.relatives == nil {
		s.relatives = make(map[string]Override)
	}
	s.relatives[name] = o
}

func (s *requestState) setRecursion(d Depth) { s.depth = d.normalize() }

func (s *requestState) setRepresentation(m Representation) { s.mode = m }

func (s *requestState) addOrder(o Order) { s.orders = append(s.orders, o) }

func (s *requestState) setWindow(limit, offset int) {
	s.window = &window{limit: limit, offset: offset}
}

func (s *requestState) drainRelatives() map[string]Override {
	r := s.relatives
	s.relatives = nil
	return r
}

func (s *requestState) drainRecursion() Depth {
	d := s.depth
	s.depth = 0
	return d
}

func (s *requestState) drainRepresentation() Representation {
	m := s.mode
	s.mode = 0
	return m
}

func (s *requestState) drainDirectives() ([]Order, *window) {
	o, w := s.orders, s.window
	s.orders, s.window = nil, nil
	return o, w
}

// drain empties the state. It is called exactly once per fetch.
func (s *requestState) drain() pending {
	p := pending{
		relatives: s.drainRelatives(),
		depth:     s.drainRecursion(),
		mode:      s.drainRepresentation(),
	}
	p.orders, p.window = s.drainDirectives()
	return p
}
