package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type fakeCall struct {
	msg   ethereum.CallMsg
	block *big.Int
}

// fakeCaller answers eth_call by method selector.
type fakeCaller struct {
	responses map[string][]byte
	calls     []fakeCall
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) respond(t *testing.T, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	data, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.responses[string(parsed.Methods[method].ID)] = data
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls = append(f.calls, fakeCall{msg: msg, block: block})
	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}
	resp, ok := f.responses[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func TestFetchPosition(t *testing.T) {
	parsed, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	manager := common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	token0 := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	token1 := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	liquidity, _ := new(big.Int).SetString("1517882343751509868544", 10)

	caller := newFakeCaller()
	caller.respond(t, parsed, "positions",
		big.NewInt(0),
		common.Address{},
		token0,
		token1,
		big.NewInt(500),
		big.NewInt(-887220),
		big.NewInt(200310),
		liquidity,
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(12),
		big.NewInt(34),
	)

	block := big.NewInt(19000000)
	pos, err := FetchPosition(context.Background(), caller, manager, big.NewInt(1), block)
	if err != nil {
		t.Fatalf("fetch position: %v", err)
	}

	if pos.Token0 != token0 || pos.Token1 != token1 {
		t.Fatalf("token mismatch: %+v", pos)
	}
	if pos.Fee != 500 || pos.TickLower != -887220 || pos.TickUpper != 200310 {
		t.Fatalf("range mismatch: %+v", pos)
	}
	if pos.Liquidity.Cmp(liquidity) != 0 {
		t.Fatalf("liquidity mismatch: %s", pos.Liquidity)
	}
	if pos.TokensOwed0.Int64() != 12 || pos.TokensOwed1.Int64() != 34 {
		t.Fatalf("tokens owed mismatch: %+v", pos)
	}
	if len(caller.calls) != 1 || caller.calls[0].block.Cmp(block) != 0 || *caller.calls[0].msg.To != manager {
		t.Fatalf("unexpected calls: %+v", caller.calls)
	}
}

func TestSimulateCollectSendsFromOwner(t *testing.T) {
	parsed, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	manager := common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")

	caller := newFakeCaller()
	caller.respond(t, parsed, "collect", big.NewInt(1_500_000), big.NewInt(250_000_000_000_000_000))

	fee0, fee1, err := SimulateCollect(context.Background(), caller, manager, big.NewInt(7), owner, nil)
	if err != nil {
		t.Fatalf("simulate collect: %v", err)
	}
	if fee0.Int64() != 1_500_000 || fee1.Int64() != 250_000_000_000_000_000 {
		t.Fatalf("fees mismatch: %s %s", fee0, fee1)
	}

	call := caller.calls[0]
	if call.msg.From != owner {
		t.Fatalf("collect must be sent from owner, got %s", call.msg.From.Hex())
	}
	if call.block != nil {
		t.Fatalf("expected latest block, got %s", call.block)
	}

	args, err := parsed.Methods["collect"].Inputs.Unpack(call.msg.Data[4:])
	if err != nil {
		t.Fatalf("unpack collect input: %v", err)
	}
	params, ok := abi.ConvertType(args[0], new(collectParams)).(*collectParams)
	if !ok {
		t.Fatalf("unexpected collect params type %T", args[0])
	}
	if params.TokenId.Int64() != 7 || params.Recipient != owner {
		t.Fatalf("collect params mismatch: %+v", params)
	}
	if params.Amount0Max.Cmp(MaxUint128) != 0 || params.Amount1Max.Cmp(MaxUint128) != 0 {
		t.Fatalf("collect caps must be max uint128")
	}
}

func TestFetchPoolAddressAndSlot0(t *testing.T) {
	factoryParsed, err := FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	poolParsed, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	pool := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	sqrtPrice, _ := new(big.Int).SetString("1771845812700903892492222464329", 10)

	caller := newFakeCaller()
	caller.respond(t, factoryParsed, "getPool", pool)
	caller.respond(t, poolParsed, "slot0", sqrtPrice, big.NewInt(-201000), uint16(1), uint16(2), uint16(3), uint8(0), true)

	got, err := FetchPoolAddress(context.Background(), caller, factory, common.Address{1}, common.Address{2}, 500, nil)
	if err != nil {
		t.Fatalf("fetch pool: %v", err)
	}
	if got != pool {
		t.Fatalf("pool mismatch: %s", got.Hex())
	}

	price, tick, err := FetchSlot0(context.Background(), caller, pool, nil)
	if err != nil {
		t.Fatalf("fetch slot0: %v", err)
	}
	if price.Cmp(sqrtPrice) != 0 || tick != -201000 {
		t.Fatalf("slot0 mismatch: %s %d", price, tick)
	}
}

func TestFetchPoolAddressMissing(t *testing.T) {
	parsed, err := FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := newFakeCaller()
	caller.respond(t, parsed, "getPool", common.Address{})

	if _, err := FetchPoolAddress(context.Background(), caller, common.Address{9}, common.Address{1}, common.Address{2}, 3000, nil); err == nil {
		t.Fatalf("expected error for missing pool")
	}
}

func TestCachedTokenMetaFallsBackToBytes32(t *testing.T) {
	stringABI, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	bytesABI, err := erc20Bytes32ABI.get()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	var symbol [32]byte
	copy(symbol[:], "MKR")

	caller := newFakeCaller()
	caller.respond(t, stringABI, "decimals", uint8(18))
	// symbol and name share selectors across both ABIs; the bytes32 payload
	// fails to decode as string, forcing the fallback.
	caller.respond(t, bytesABI, "symbol", symbol)
	caller.respond(t, bytesABI, "name", symbol)

	cache := NewTokenMetaCache()
	token := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")

	meta, err := CachedTokenMeta(context.Background(), caller, cache, token, zap.NewNop())
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "MKR" || meta.Name != "MKR" {
		t.Fatalf("token meta mismatch: %+v", meta)
	}

	calls := len(caller.calls)
	if _, err := CachedTokenMeta(context.Background(), caller, cache, token, zap.NewNop()); err != nil {
		t.Fatalf("cached token meta: %v", err)
	}
	if len(caller.calls) != calls {
		t.Fatalf("expected cache hit, made %d extra calls", len(caller.calls)-calls)
	}
}

func TestOutputConversions(t *testing.T) {
	values := []interface{}{big.NewInt(-887272), common.HexToAddress("0x01"), uint8(18)}

	tick, err := int24Output(values, 0)
	if err != nil || tick != -887272 {
		t.Fatalf("unexpected tick %d err %v", tick, err)
	}
	if _, err := output[common.Address](values, 0); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if _, err := output[uint8](values, 3); err == nil {
		t.Fatalf("expected missing output error")
	}
	if _, err := int24FromBig(big.NewInt(1 << 23)); err == nil {
		t.Fatalf("expected int24 overflow")
	}
	if _, err := uint24FromBig(big.NewInt(-1)); err == nil {
		t.Fatalf("expected uint24 overflow")
	}
	if got := bytes32ToString([32]byte{'M', 'K', 'R'}); got != "MKR" {
		t.Fatalf("unexpected bytes32 string %q", got)
	}
}
