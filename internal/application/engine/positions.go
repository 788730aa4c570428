package engine

import "sync"

// positionSet es el registro en memoria de los tokens con posición abierta.
// Se precarga desde el ledger al arrancar y se mantiene en sync con cada
// fill y cada liquidación. La verdad durable sigue siendo el ledger; este
// set solo existe para que los gates del executor no toquen la base de
// datos en el camino caliente.
type positionSet struct {
	mu   sync.Mutex
	open map[string]bool
}

func newPositionSet(initial map[string]bool) *positionSet {
	open := make(map[string]bool, len(initial))
	for token := range initial {
		open[token] = true
	}
	return &positionSet{open: open}
}

func (p *positionSet) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

// reserve marca el token como abierto. Devuelve false si ya lo estaba:
// check y set atómicos para que dos ejecuciones concurrentes del mismo
// token no pasen las dos.
func (p *positionSet) reserve(tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open[tokenID] {
		return false
	}
	p.open[tokenID] = true
	return true
}

func (p *positionSet) release(tokenID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, tokenID)
}
