package snapshot

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/valuation"
)

var (
	testManager = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	testFactory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	testPool    = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	testToken0  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testToken1  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testOwner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type callKey struct {
	to       common.Address
	selector string
}

type recordedCall struct {
	msg   ethereum.CallMsg
	block *big.Int
}

type fakeChain struct {
	mu        sync.Mutex
	latest    uint64
	responses map[callKey][]byte
	failures  map[string]int
	calls     map[string][]recordedCall
}

func newFakeChain(t *testing.T, sqrtPriceX96 *big.Int) *fakeChain {
	t.Helper()
	f := &fakeChain{
		latest:    19000000,
		responses: make(map[callKey][]byte),
		failures:  make(map[string]int),
		calls:     make(map[string][]recordedCall),
	}

	manager, err := dex.PositionManagerABI()
	require.NoError(t, err)
	factory, err := dex.FactoryABI()
	require.NoError(t, err)
	pool, err := dex.V3PoolABI()
	require.NoError(t, err)
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)

	f.respond(t, testManager, manager, "positions",
		big.NewInt(0), common.Address{}, testToken0, testToken1, big.NewInt(500),
		big.NewInt(-100), big.NewInt(100), big.NewInt(1_000_000),
		big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0),
	)
	f.respond(t, testManager, manager, "ownerOf", testOwner)
	f.respond(t, testManager, manager, "collect", big.NewInt(1_500_000), big.NewInt(250_000_000_000_000_000))
	f.respond(t, testFactory, factory, "getPool", testPool)
	f.respond(t, testPool, pool, "slot0", sqrtPriceX96, big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true)
	f.respond(t, testToken0, erc20, "decimals", uint8(6))
	f.respond(t, testToken0, erc20, "symbol", "USDC")
	f.respond(t, testToken0, erc20, "name", "USD Coin")
	f.respond(t, testToken1, erc20, "decimals", uint8(18))
	f.respond(t, testToken1, erc20, "symbol", "WETH")
	f.respond(t, testToken1, erc20, "name", "Wrapped Ether")
	return f
}

func (f *fakeChain) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	data, err := parsed.Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err, method)
	f.responses[callKey{to: to, selector: string(parsed.Methods[method].ID)}] = data
}

func (f *fakeChain) ChainID(context.Context) (uint64, error) { return 1, nil }

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeChain) BlockTimestamp(context.Context, uint64) (uint64, error) { return 1700000000, nil }

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	selector := string(msg.Data[:4])
	f.calls[selector] = append(f.calls[selector], recordedCall{msg: msg, block: block})
	if f.failures[selector] > 0 {
		f.failures[selector]--
		return nil, errors.New("connection reset")
	}
	resp, ok := f.responses[callKey{to: *msg.To, selector: selector}]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func selectorOf(t *testing.T, parsed func() (abi.ABI, error), method string) string {
	t.Helper()
	a, err := parsed()
	require.NoError(t, err)
	return string(a.Methods[method].ID)
}

func newTestService(chain ChainReader) *Service {
	fetcher := NewFetcher(Config{
		PositionManager: testManager,
		Factory:         testFactory,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
	}, chain, zap.NewNop())
	svc := NewService(fetcher, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func TestServiceValueLatest(t *testing.T) {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	chain := newFakeChain(t, q96)
	svc := newTestService(chain)

	rec, err := svc.Value(context.Background(), big.NewInt(42), Latest())
	require.NoError(t, err)

	_, amounts, err := valuation.AmountsForLiquidity(q96, -100, 100, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), rec.ChainID)
	assert.Equal(t, "42", rec.TokenID)
	assert.Equal(t, uint64(19000000), rec.BlockNumber)
	assert.Equal(t, uint64(1700000000), rec.Timestamp)
	assert.Equal(t, testOwner.Hex(), rec.Owner)
	assert.Equal(t, testPool.Hex(), rec.Pool)
	assert.Equal(t, "USDC", rec.Symbol0)
	assert.Equal(t, "WETH", rec.Symbol1)
	assert.Equal(t, "in_range", rec.Region)
	assert.Equal(t, int32(0), rec.Tick)
	assert.Equal(t, amounts.Amount0.String(), rec.Amount0Raw)
	assert.Equal(t, amounts.Amount1.String(), rec.Amount1Raw)
	assert.Equal(t, valuation.Scale(amounts.Amount0, 6).String(), rec.Amount0)
	assert.Equal(t, "1.5", rec.UnclaimedFee0)
	assert.Equal(t, "0.25", rec.UnclaimedFee1)
	assert.Equal(t, "2024-01-02T03:04:05Z", rec.ValuedAt)

	// Every position-state call is pinned to the resolved latest block.
	for _, method := range []string{"positions", "ownerOf", "collect"} {
		calls := chain.calls[selectorOf(t, dex.PositionManagerABI, method)]
		require.Len(t, calls, 1, method)
		assert.Equal(t, uint64(19000000), calls[0].block.Uint64(), method)
	}
	collect := chain.calls[selectorOf(t, dex.PositionManagerABI, "collect")][0]
	assert.Equal(t, testOwner, collect.msg.From)
}

func TestServiceValueRetriesTransientErrors(t *testing.T) {
	chain := newFakeChain(t, new(big.Int).Lsh(big.NewInt(1), 96))
	positions := selectorOf(t, dex.PositionManagerABI, "positions")
	chain.failures[positions] = 2
	svc := newTestService(chain)

	rec, err := svc.Value(context.Background(), big.NewInt(42), AtBlock(18000000))
	require.NoError(t, err)
	assert.Equal(t, uint64(18000000), rec.BlockNumber)
	assert.Len(t, chain.calls[positions], 3)
}

func TestServiceValueGivesUpAfterRetries(t *testing.T) {
	chain := newFakeChain(t, new(big.Int).Lsh(big.NewInt(1), 96))
	chain.failures[selectorOf(t, dex.PositionManagerABI, "ownerOf")] = 10
	svc := newTestService(chain)

	_, err := svc.Value(context.Background(), big.NewInt(42), Latest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch owner")
}

func TestServiceValueReportsEngineError(t *testing.T) {
	chain := newFakeChain(t, big.NewInt(0))
	svc := newTestService(chain)

	rec, err := svc.Value(context.Background(), big.NewInt(42), Latest())
	assert.ErrorIs(t, err, valuation.ErrInvalidPrice)
	assert.Empty(t, rec.TokenID)
}

func TestServiceValueCachesPoolsAndTokens(t *testing.T) {
	chain := newFakeChain(t, new(big.Int).Lsh(big.NewInt(1), 96))
	svc := newTestService(chain)

	for i := 0; i < 3; i++ {
		_, err := svc.Value(context.Background(), big.NewInt(42), AtBlock(uint64(18000000+i)))
		require.NoError(t, err)
	}

	assert.Len(t, chain.calls[selectorOf(t, dex.FactoryABI, "getPool")], 1)
	assert.Len(t, chain.calls[selectorOf(t, dex.ERC20ABI, "decimals")], 2)
	assert.Len(t, chain.calls[selectorOf(t, dex.PositionManagerABI, "positions")], 3)
}

func TestServiceValueDoesNotRetryReverts(t *testing.T) {
	chain := newFakeChain(t, new(big.Int).Lsh(big.NewInt(1), 96))
	positions := selectorOf(t, dex.PositionManagerABI, "positions")
	delete(chain.responses, callKey{to: testManager, selector: positions})
	svc := newTestService(chain)

	_, err := svc.Value(context.Background(), big.NewInt(43), AtBlock(18000000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch position")
	assert.Len(t, chain.calls[positions], 1)
}
