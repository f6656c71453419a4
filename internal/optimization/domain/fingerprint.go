package domain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the genuine variable values of every live object. Two
// solutions with equal fingerprints have, with overwhelming probability, the
// same genuine state.
func Fingerprint(s *Solution) uint64 {
	d := xxhash.New()
	var buf [8]byte
	write := func(x int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(x))
		_, _ = d.Write(buf[:])
	}
	for _, o := range s.objects {
		if o == nil {
			continue
		}
		write(int64(o.ID))
		for _, v := range o.Class.variables {
			switch v.Kind {
			case Basic, Chained:
				write(int64(o.refs[v.slot]))
			case List:
				seq := o.seqs[v.slot]
				write(int64(len(seq)))
				for _, e := range seq {
					write(int64(e))
				}
			}
		}
	}
	return d.Sum64()
}

// DiffGenuine returns the IDs of objects whose genuine variables differ
// between two solutions of the same model, in arena order.
func DiffGenuine(a, b *Solution) []ID {
	n := a.Len()
	if b.Len() > n {
		n = b.Len()
	}
	var out []ID
	for i := 0; i < n; i++ {
		id := ID(i)
		oa, ob := a.Object(id), b.Object(id)
		if oa == nil || ob == nil {
			if oa != ob {
				out = append(out, id)
			}
			continue
		}
		if !sameGenuine(oa, ob) {
			out = append(out, id)
		}
	}
	return out
}

func sameGenuine(a, b *Object) bool {
	if a.Class != b.Class {
		return false
	}
	for _, v := range a.Class.variables {
		switch v.Kind {
		case Basic, Chained:
			if a.refs[v.slot] != b.refs[v.slot] {
				return false
			}
		case List:
			sa, sb := a.seqs[v.slot], b.seqs[v.slot]
			if len(sa) != len(sb) {
				return false
			}
			for i := range sa {
				if sa[i] != sb[i] {
					return false
				}
			}
		}
	}
	return true
}
