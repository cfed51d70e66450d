// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mccoysc/xchain-governance/message"
)

// Relay errors
var (
	ErrInsufficientValue  = errors.New("attached value below delivery cost")
	ErrUnsupportedChain   = errors.New("destination chain not supported")
	ErrUnknownDestination = errors.New("no endpoint registered for destination")
	ErrGasLimitExceeded   = errors.New("gas limit exceeds relay maximum")
	ErrUnknownDelivery    = errors.New("unknown delivery")
)

var (
	messagesSentCounter      = metrics.NewRegisteredCounter("relay/messages/sent", nil)
	messagesDeliveredCounter = metrics.NewRegisteredCounter("relay/messages/delivered", nil)
	messagesRejectedCounter  = metrics.NewRegisteredCounter("relay/messages/rejected", nil)
)

// Endpoint is a destination contract able to receive relayed messages.
type Endpoint interface {
	Receive(caller common.Address, payload []byte, additional [][]byte, sourceAddress common.Hash, sourceChain message.ChainID, deliveryID common.Hash) error
}

// SourceLedger is the chain the relayer collects fees on.
type SourceLedger interface {
	ChainID() message.ChainID
	Transfer(from, to common.Address, amount *big.Int) error
}

// Envelope is a message accepted by the relayer
type Envelope struct {
	Sequence    uint64          // 发送序号
	SourceChain message.ChainID // 源链
	Emitter     common.Hash     // 发送者（32 字节填充格式）
	DestChain   message.ChainID // 目标链
	DestAddress common.Address  // 目标合约
	Payload     []byte          // 消息内容
	GasLimit    uint64          // gas 预算
	DeliveryID  common.Hash     // 投递 ID
}

// Delivery is the outcome of handing an envelope to its endpoint
type Delivery struct {
	Envelope *Envelope
	Err      error
}

// Relayer simulates the relay network: it sells delivery on the source
// ledger and hands messages to registered endpoints on destination ledgers.
// Delivery is at-least-once and never retried automatically.
type Relayer struct {
	config *Config
	source SourceLedger

	mu         sync.Mutex
	sequence   uint64
	routes     map[message.ChainID]map[common.Address]Endpoint
	pending    []*Envelope
	envelopes  map[common.Hash]*Envelope
	deliveries map[common.Hash]*Delivery
	notify     chan struct{}

	log log.Logger
}

// NewRelayer creates a relayer collecting fees on source
func NewRelayer(config *Config, source SourceLedger) (*Relayer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Relayer{
		config:     config,
		source:     source,
		routes:     make(map[message.ChainID]map[common.Address]Endpoint),
		envelopes:  make(map[common.Hash]*Envelope),
		deliveries: make(map[common.Hash]*Delivery),
		notify:     make(chan struct{}, 1),
		log:        log.New("module", "relay", "source", source.ChainID()),
	}, nil
}

// Address returns the relayer identity used as caller on destination chains
func (r *Relayer) Address() common.Address {
	return r.config.Address
}

// Register makes an endpoint reachable at addr on chain
func (r *Relayer) Register(chain message.ChainID, addr common.Address, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.routes[chain] == nil {
		r.routes[chain] = make(map[common.Address]Endpoint)
	}
	r.routes[chain][addr] = ep
	r.log.Info("Relay: endpoint registered", "chain", chain, "address", addr)
}

// QuoteDeliveryCost returns BaseFee + gasLimit*GasPrice
func (r *Relayer) QuoteDeliveryCost(dst message.ChainID, gasLimit uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[dst]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, dst)
	}
	return r.quote(gasLimit)
}

func (r *Relayer) quote(gasLimit uint64) (*big.Int, error) {
	if gasLimit > r.config.MaxGasLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrGasLimitExceeded, gasLimit, r.config.MaxGasLimit)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), r.config.GasPrice)
	return cost.Add(cost, r.config.BaseFee), nil
}

// Send collects value from sender and queues payload for delivery. The
// returned sequence number is unique per relayer.
//
// The emitter identity is taken from sender as given. The relayer trusts its
// callers to pass their own address.
func (r *Relayer) Send(sender common.Address, dst message.ChainID, dstAddr common.Address, payload []byte, value *big.Int, gasLimit uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	routes, ok := r.routes[dst]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedChain, dst)
	}
	if _, ok := routes[dstAddr]; !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrUnknownDestination, dstAddr.Hex(), dst)
	}
	cost, err := r.quote(gasLimit)
	if err != nil {
		return 0, err
	}
	if value == nil || value.Cmp(cost) < 0 {
		return 0, fmt.Errorf("%w: attached %v, cost %v", ErrInsufficientValue, value, cost)
	}
	if err := r.source.Transfer(sender, r.config.Address, value); err != nil {
		return 0, err
	}

	r.sequence++
	env := &Envelope{
		Sequence:    r.sequence,
		SourceChain: r.source.ChainID(),
		Emitter:     message.ToEmitter(sender),
		DestChain:   dst,
		DestAddress: dstAddr,
		Payload:     common.CopyBytes(payload),
		GasLimit:    gasLimit,
	}
	env.DeliveryID = deliveryID(env)
	r.pending = append(r.pending, env)
	r.envelopes[env.DeliveryID] = env

	select {
	case r.notify <- struct{}{}:
	default:
	}
	messagesSentCounter.Inc(1)
	r.log.Info("Relay: message accepted", "sequence", env.Sequence, "emitter", sender, "dst", dst, "delivery", env.DeliveryID)
	return env.Sequence, nil
}

// deliveryID derives the delivery identifier keccak256(rlp(source, emitter, sequence, payload)).
func deliveryID(env *Envelope) common.Hash {
	data, _ := rlp.EncodeToBytes([]interface{}{uint64(env.SourceChain), env.Emitter, env.Sequence, env.Payload})
	return crypto.Keccak256Hash(data)
}

// Pending returns the envelopes waiting for delivery
func (r *Relayer) Pending() []*Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*Envelope, len(r.pending))
	copy(pending, r.pending)
	return pending
}

// Delivery returns the outcome of a past delivery
func (r *Relayer) Delivery(id common.Hash) (*Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deliveries[id]
	if !ok {
		return nil, false
	}
	cpy := *d
	return &cpy, true
}

// Deliver hands every pending envelope to its endpoint and returns the
// number delivered. Endpoint rejections are recorded, not returned.
func (r *Relayer) Deliver(ctx context.Context) (int, error) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for i, env := range batch {
		if err := ctx.Err(); err != nil {
			r.mu.Lock()
			r.pending = append(batch[i:], r.pending...)
			r.mu.Unlock()
			return i, err
		}
		err := r.deliver(env)

		r.mu.Lock()
		r.deliveries[env.DeliveryID] = &Delivery{Envelope: env, Err: err}
		r.mu.Unlock()
	}
	return len(batch), nil
}

// Redeliver hands a sent envelope to its endpoint again and returns the
// endpoint's verdict. It does not wait for a delivery in progress.
func (r *Relayer) Redeliver(ctx context.Context, id common.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	env, ok := r.envelopes[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDelivery, id.Hex())
	}
	return r.deliver(env)
}

func (r *Relayer) deliver(env *Envelope) error {
	r.mu.Lock()
	ep := r.routes[env.DestChain][env.DestAddress]
	r.mu.Unlock()

	if ep == nil {
		return fmt.Errorf("%w: %s on %s", ErrUnknownDestination, env.DestAddress.Hex(), env.DestChain)
	}
	err := ep.Receive(r.config.Address, env.Payload, nil, env.Emitter, env.SourceChain, env.DeliveryID)
	if err != nil {
		messagesRejectedCounter.Inc(1)
		r.log.Warn("Relay: delivery rejected", "sequence", env.Sequence, "delivery", env.DeliveryID, "err", err)
		return err
	}
	messagesDeliveredCounter.Inc(1)
	r.log.Info("Relay: message delivered", "sequence", env.Sequence, "dst", env.DestChain, "delivery", env.DeliveryID)
	return nil
}

// Run delivers pending messages whenever one is sent or the poll interval
// elapses, until ctx is cancelled.
func (r *Relayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.notify:
		case <-ticker.C:
		}
		if _, err := r.Deliver(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
}
