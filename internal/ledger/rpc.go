package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPC 是账本节点客户端的最小子集，*rpc.Client 直接满足该接口。
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

var _ RPC = (*rpc.Client)(nil)

// Endpoint 把常用网络名映射到公共 RPC 地址，其他值原样返回。
func Endpoint(network string) string {
	switch network {
	case "mainnet-beta", "mainnet":
		return rpc.MainNetBeta_RPC
	case "devnet":
		return rpc.DevNet_RPC
	case "testnet":
		return rpc.TestNet_RPC
	case "localnet", "localhost":
		return rpc.LocalNet_RPC
	default:
		return network
	}
}
