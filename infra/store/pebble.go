package store

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"aaob/domain/orderbook"
	"aaob/infra/wire"
)

// Key layout:
//
//	market/<id hex>  wire-encoded market parameters
//	book/<id hex>    OrderbookState binary
//	meta/applied     big-endian uint64
var (
	marketPrefix = []byte("market/")
	bookPrefix   = []byte("book/")
	appliedKey   = []byte("meta/applied")
)

type Pebble struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open state store")
	}
	return &Pebble{db: db}, nil
}

func key(prefix []byte, id orderbook.MarketID) []byte {
	return append(append([]byte{}, prefix...), id.String()...)
}

func (p *Pebble) get(k []byte) ([]byte, error) {
	v, closer, err := p.db.Get(k)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *Pebble) Books() ([]Book, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: marketPrefix,
		UpperBound: []byte("market0"), // '0' sorts right after '/'
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Book
	for iter.First(); iter.Valid(); iter.Next() {
		m, err := wire.ParseMarket(iter.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", iter.Key())
		}
		b, err := p.Load(m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	// keys are ordered by id; callers expect names
	sortBooks(out)
	return out, nil
}

func (p *Pebble) Load(id orderbook.MarketID) (Book, error) {
	mv, err := p.get(key(marketPrefix, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Book{}, orderbook.ErrMarketNotFound
	}
	if err != nil {
		return Book{}, err
	}
	m, err := wire.ParseMarket(mv)
	if err != nil {
		return Book{}, err
	}

	sv, err := p.get(key(bookPrefix, id))
	if err != nil {
		return Book{}, errors.Wrapf(err, "book of %s", m.Name)
	}
	s := &orderbook.OrderbookState{}
	if err := s.UnmarshalBinary(sv); err != nil {
		return Book{}, errors.Wrapf(err, "decode book %s", m.Name)
	}
	return Book{Market: m, State: s}, nil
}

func (p *Pebble) Apply(u Update) error {
	b := p.db.NewBatch()
	defer b.Close()

	for _, bk := range u.Books {
		state, err := bk.State.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "encode book %s", bk.Market.Name)
		}
		if err := b.Set(key(marketPrefix, bk.Market.ID), wire.AppendMarket(nil, bk.Market), nil); err != nil {
			return err
		}
		if err := b.Set(key(bookPrefix, bk.Market.ID), state, nil); err != nil {
			return err
		}
	}
	for _, id := range u.Closed {
		if err := b.Delete(key(marketPrefix, id), nil); err != nil {
			return err
		}
		if err := b.Delete(key(bookPrefix, id), nil); err != nil {
			return err
		}
	}
	if err := b.Set(appliedKey, binary.BigEndian.AppendUint64(nil, u.Seq), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) LastApplied() (uint64, error) {
	v, err := p.get(appliedKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, errors.Newf("applied sequence of %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
