package slab

/******************** Internal helpers ********************/

func (s *Slab) search(k Key) Handle {
	es := s.entries
	n := s.root
	for n != s.sentinel {
		switch c := k.Compare(es[n].node.Key); {
		case c < 0:
			n = es[n].left
		case c > 0:
			n = es[n].right
		default:
			return n
		}
	}
	return s.sentinel
}

func (s *Slab) minNode(n Handle) Handle {
	if n == s.sentinel {
		return s.sentinel
	}
	for s.entries[n].left != s.sentinel {
		n = s.entries[n].left
	}
	return n
}

func (s *Slab) maxNode(n Handle) Handle {
	if n == s.sentinel {
		return s.sentinel
	}
	for s.entries[n].right != s.sentinel {
		n = s.entries[n].right
	}
	return n
}

func (s *Slab) next(n Handle) Handle {
	es := s.entries
	if es[n].right != s.sentinel {
		return s.minNode(es[n].right)
	}
	p := es[n].parent
	for p != s.sentinel && n == es[p].right {
		n = p
		p = es[p].parent
	}
	return p
}

func (s *Slab) prev(n Handle) Handle {
	es := s.entries
	if es[n].left != s.sentinel {
		return s.maxNode(es[n].left)
	}
	p := es[n].parent
	for p != s.sentinel && n == es[p].left {
		n = p
		p = es[p].parent
	}
	return p
}

func (s *Slab) leftRotate(x Handle) {
	es := s.entries
	y := es[x].right
	es[x].right = es[y].left
	if es[y].left != s.sentinel {
		es[es[y].left].parent = x
	}
	es[y].parent = es[x].parent
	if es[x].parent == s.sentinel {
		s.root = y
	} else if x == es[es[x].parent].left {
		es[es[x].parent].left = y
	} else {
		es[es[x].parent].right = y
	}
	es[y].left = x
	es[x].parent = y
}

func (s *Slab) rightRotate(y Handle) {
	es := s.entries
	x := es[y].left
	es[y].left = es[x].right
	if es[x].right != s.sentinel {
		es[es[x].right].parent = y
	}
	es[x].parent = es[y].parent
	if es[y].parent == s.sentinel {
		s.root = x
	} else if y == es[es[y].parent].right {
		es[es[y].parent].right = x
	} else {
		es[es[y].parent].left = x
	}
	es[x].right = y
	es[y].parent = x
}

func (s *Slab) insertFixup(z Handle) {
	es := s.entries
	for es[es[z].parent].color == red {
		p := es[z].parent
		g := es[p].parent
		if p == es[g].left {
			y := es[g].right
			if es[y].color == red {
				es[p].color = black
				es[y].color = black
				es[g].color = red
				z = g
			} else {
				if z == es[p].right {
					z = p
					s.leftRotate(z)
				}
				es[es[z].parent].color = black
				es[es[es[z].parent].parent].color = red
				s.rightRotate(es[es[z].parent].parent)
			}
		} else {
			y := es[g].left
			if es[y].color == red {
				es[p].color = black
				es[y].color = black
				es[g].color = red
				z = g
			} else {
				if z == es[p].left {
					z = p
					s.rightRotate(z)
				}
				es[es[z].parent].color = black
				es[es[es[z].parent].parent].color = red
				s.leftRotate(es[es[z].parent].parent)
			}
		}
	}
	es[s.root].color = black
}

func (s *Slab) transplant(u, v Handle) {
	es := s.entries
	if es[u].parent == s.sentinel {
		s.root = v
	} else if u == es[es[u].parent].left {
		es[es[u].parent].left = v
	} else {
		es[es[u].parent].right = v
	}
	es[v].parent = es[u].parent
}

func (s *Slab) deleteNode(z Handle) {
	es := s.entries
	y := z
	yOrigColor := es[y].color
	var x Handle

	if es[z].left == s.sentinel {
		x = es[z].right
		s.transplant(z, es[z].right)
	} else if es[z].right == s.sentinel {
		x = es[z].left
		s.transplant(z, es[z].left)
	} else {
		y = s.minNode(es[z].right)
		yOrigColor = es[y].color
		x = es[y].right
		if es[y].parent == z {
			es[x].parent = y
		} else {
			s.transplant(y, es[y].right)
			es[y].right = es[z].right
			es[es[y].right].parent = y
		}
		s.transplant(z, y)
		es[y].left = es[z].left
		es[es[y].left].parent = y
		es[y].color = es[z].color
	}

	if yOrigColor == black {
		s.deleteFixup(x)
	}
}

func (s *Slab) deleteFixup(x Handle) {
	es := s.entries
	for x != s.root && es[x].color == black {
		p := es[x].parent
		if x == es[p].left {
			w := es[p].right
			if es[w].color == red {
				es[w].color = black
				es[p].color = red
				s.leftRotate(p)
				w = es[es[x].parent].right
			}
			if es[es[w].left].color == black && es[es[w].right].color == black {
				es[w].color = red
				x = es[x].parent
			} else {
				if es[es[w].right].color == black {
					es[es[w].left].color = black
					es[w].color = red
					s.rightRotate(w)
					w = es[es[x].parent].right
				}
				es[w].color = es[es[x].parent].color
				es[es[x].parent].color = black
				es[es[w].right].color = black
				s.leftRotate(es[x].parent)
				x = s.root
			}
		} else {
			w := es[p].left
			if es[w].color == red {
				es[w].color = black
				es[p].color = red
				s.rightRotate(p)
				w = es[es[x].parent].left
			}
			if es[es[w].right].color == black && es[es[w].left].color == black {
				es[w].color = red
				x = es[x].parent
			} else {
				if es[es[w].left].color == black {
					es[es[w].right].color = black
					es[w].color = red
					s.leftRotate(w)
					w = es[es[x].parent].left
				}
				es[w].color = es[es[x].parent].color
				es[es[x].parent].color = black
				es[es[w].left].color = black
				s.rightRotate(es[x].parent)
				x = s.root
			}
		}
	}
	es[x].color = black
}
