package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller performs eth_call. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// callRequest describes a single contract method call.
type callRequest struct {
	to     common.Address
	from   common.Address
	parsed abi.ABI
	method string
	args   []interface{}
	block  *big.Int
}

func callMethod(ctx context.Context, caller ContractCaller, req callRequest) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := req.parsed.Pack(req.method, req.args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", req.method, err)
	}
	to := req.to
	msg := ethereum.CallMsg{From: req.from, To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, req.block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.method, err)
	}
	values, err := req.parsed.Unpack(req.method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", req.method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", req.method)
	}
	return values, nil
}
