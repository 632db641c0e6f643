package dedup

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Index é o conjunto ordenado dos ids de track já persistidos. Somente leitura.
type Index struct {
	ids []int64
}

// NewIndex copia ids e ordena se necessário.
func NewIndex(ids []int64) *Index {
	cp := slices.Clone(ids)
	if !slices.IsSorted(cp) {
		slices.Sort(cp)
	}
	return &Index{ids: cp}
}

// Contains faz busca binária iterativa.
func (ix *Index) Contains(id int64) bool {
	if ix == nil {
		return false
	}
	lo, hi := 0, len(ix.ids)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		switch v := ix.ids[mid]; {
		case v == id:
			return true
		case v < id:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return false
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.ids)
}

// Lister lista os ids persistidos em ordem crescente.
type Lister interface {
	ListExistingContentIDs(ctx context.Context) ([]int64, error)
}

func Build(ctx context.Context, l Lister) (*Index, error) {
	ids, err := l.ListExistingContentIDs(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndex(ids), nil
}

// Snapshot publica o Index atual para os workers. Só o coordenador troca o
// snapshot, e só depois de um lote persistido.
type Snapshot struct {
	p atomic.Pointer[Index]
}

func NewSnapshot(ix *Index) *Snapshot {
	s := &Snapshot{}
	s.p.Store(ix)
	return s
}

func (s *Snapshot) Load() *Index   { return s.p.Load() }
func (s *Snapshot) Store(ix *Index) { s.p.Store(ix) }

// Pending guarda os ids reivindicados nesta execução que ainda não estão
// no Index.
type Pending struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewPending() *Pending {
	return &Pending{ids: make(map[int64]struct{})}
}

// Claim reserva id. Falso se outro perfil da execução já o reservou.
func (p *Pending) Claim(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[id]; ok {
		return false
	}
	p.ids[id] = struct{}{}
	return true
}

func (p *Pending) Release(ids ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.ids, id)
	}
}

// Prune descarta os ids que o Index já cobre.
func (p *Pending) Prune(ix *Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.ids {
		if ix.Contains(id) {
			delete(p.ids, id)
		}
	}
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}
