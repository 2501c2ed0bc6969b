package da

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// DefaultMaxBlockTransactions bounds the transactions of one payload.
const DefaultMaxBlockTransactions = 512

// ErrMempoolFull is returned when a transaction is submitted to a full
// mempool.
var ErrMempoolFull = errors.New("mempool is full")

// PayloadSource supplies the payload a DA leader proposes for its view.
type PayloadSource interface {
	// Payload returns the encoded payload and its metadata. An empty
	// payload is valid.
	Payload(ctx context.Context, view model.View, epoch model.Epoch) (payload []byte, metadata []byte, err error)
}

// Metadata describes an encoded payload.
type Metadata struct {
	Transactions int `msgpack:"transactions"`
}

// Mempool queues submitted transactions in arrival order and bundles them
// into payloads. It's safe for concurrent use.
type Mempool struct {
	mu          sync.Mutex
	queue       deque.Deque
	capacity    int
	maxPerBlock int
}

var _ PayloadSource = (*Mempool)(nil)

// NewMempool creates a mempool holding at most capacity transactions, and
// putting at most maxPerBlock of them into one payload.
func NewMempool(capacity, maxPerBlock int) (*Mempool, error) {
	if capacity < 1 {
		return nil, model.NewConfigurationErrorf("mempool capacity must be positive, got %d", capacity)
	}
	if maxPerBlock < 1 {
		maxPerBlock = DefaultMaxBlockTransactions
	}
	return &Mempool{capacity: capacity, maxPerBlock: maxPerBlock}, nil
}

// Submit queues a transaction.
//
// Expected error returns during normal operations:
//   - ErrMempoolFull if the mempool holds capacity transactions
func (m *Mempool) Submit(tx []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue.Len() >= m.capacity {
		return ErrMempoolFull
	}
	m.queue.PushBack(tx)
	return nil
}

func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Payload removes up to maxPerBlock transactions and encodes them.
func (m *Mempool) Payload(_ context.Context, _ model.View, _ model.Epoch) ([]byte, []byte, error) {
	m.mu.Lock()
	n := m.queue.Len()
	if n > m.maxPerBlock {
		n = m.maxPerBlock
	}
	txs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		tx, _ := m.queue.PopFront()
		txs = append(txs, tx.([]byte))
	}
	m.mu.Unlock()
	return EncodePayload(txs)
}

// EncodePayload encodes the transactions of a block.
func EncodePayload(txs [][]byte) ([]byte, []byte, error) {
	payload, err := msgpack.Marshal(txs)
	if err != nil {
		return nil, nil, fmt.Errorf("could not encode payload: %w", err)
	}
	metadata, err := msgpack.Marshal(Metadata{Transactions: len(txs)})
	if err != nil {
		return nil, nil, fmt.Errorf("could not encode payload metadata: %w", err)
	}
	return payload, metadata, nil
}

// DecodePayload returns the transactions of an encoded payload.
func DecodePayload(payload []byte) ([][]byte, error) {
	var txs [][]byte
	if err := msgpack.Unmarshal(payload, &txs); err != nil {
		return nil, fmt.Errorf("could not decode payload: %w", err)
	}
	return txs, nil
}
