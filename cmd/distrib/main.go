// distrib is the off-chain operator engine: it rebuilds the cumulative
// Merkle distribution tree from on-chain state, writes the blob, and
// (optionally) submits setMerkleRoot; it can also generate a claim proof
// for a single address.
// Usage:
//
//	distrib generate -config config.yaml
//	distrib proof -config config.yaml (-addr 0x... | -index N) [-out proof.json]
//	distrib claim -config config.yaml -proof proof.json
//	distrib claims -config config.yaml
//	distrib balance -config config.yaml -addr 0x... [-token 0x...]
//	distrib serve-metrics -config config.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkl-ops/distrib/internal/blobstore"
	"github.com/merkl-ops/distrib/internal/chainclient"
	"github.com/merkl-ops/distrib/internal/config"
	"github.com/merkl-ops/distrib/internal/opmetrics"
	"github.com/merkl-ops/distrib/internal/round"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "generate":
		cmdGenerate(os.Args[2:])
	case "proof":
		cmdProof(os.Args[2:])
	case "claim":
		cmdClaim(os.Args[2:])
	case "claims":
		cmdClaims(os.Args[2:])
	case "balance":
		cmdBalance(os.Args[2:])
	case "serve-metrics":
		cmdServeMetrics(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: distrib <generate|proof|claim|claims|balance|serve-metrics> [args]")
}

func buildStore(cfg *config.Config) blobstore.Store {
	upstream := blobstore.NewHTTPStore(cfg.GatewayURL, cfg.APIURL)
	cache, err := blobstore.NewCachingStore(cfg.CacheDir, upstream)
	if err != nil {
		log.Fatalf("open blob cache: %v", err)
	}
	return cache
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	if cfg.RPCURL == "" || cfg.DistributorAddr == "" || cfg.WrapperAddr == "" {
		log.Fatal("config missing rpc_url / distributor_addr / wrapper_addr")
	}
	client, err := chainclient.New(
		cfg.RPCURL,
		common.HexToAddress(cfg.DistributorAddr),
		common.HexToAddress(cfg.WrapperAddr),
		cfg.PrivateKey,
	)
	if err != nil {
		log.Fatalf("connect to chain: %v", err)
	}
	defer client.Close()

	store := buildStore(cfg)

	engine := &round.Engine{
		Chain:          chainAdapter{client},
		Store:          store,
		Distributor:    common.HexToAddress(cfg.DistributorAddr),
		FeePercent:     cfg.OperatorFeePercent,
		ConcurrencyCap: cfg.ConcurrencyCap,
	}

	blob, receipt, err := engine.GenerateRound(context.Background())
	if err != nil {
		log.Fatalf("generate round: %v", err)
	}

	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		log.Fatalf("marshal round result: %v", err)
	}
	if err := os.WriteFile(cfg.OutputFile, data, 0644); err != nil {
		log.Fatalf("write %s: %v", cfg.OutputFile, err)
	}
	fmt.Printf("wrote %s\n", cfg.OutputFile)
	if receipt != nil {
		fmt.Printf("setMerkleRoot tx: %s (status %d)\n", receipt.TxHash.Hex(), receipt.Status)
	} else {
		fmt.Println("no signing key configured, root not submitted; call setMerkleRoot manually")
	}
}

func cmdProof(args []string) {
	fs := flag.NewFlagSet("proof", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	addrHex := fs.String("addr", "", "recipient address (mutually exclusive with -index)")
	index := fs.Int("index", -1, "leaf position in the tree (mutually exclusive with -addr)")
	out := fs.String("out", "proof.json", "output file path")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	if *addrHex == "" && *index < 0 {
		log.Fatal("must specify -addr or -index")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	client, err := chainclient.New(
		cfg.RPCURL,
		common.HexToAddress(cfg.DistributorAddr),
		common.HexToAddress(cfg.WrapperAddr),
		cfg.PrivateKey,
	)
	if err != nil {
		log.Fatalf("connect to chain: %v", err)
	}
	defer client.Close()

	store := buildStore(cfg)
	engine := &round.Engine{Chain: chainAdapter{client}, Store: store}

	var recipient *common.Address
	var idxPtr *int
	if *addrHex != "" {
		a := common.HexToAddress(*addrHex)
		recipient = &a
	} else {
		idxPtr = index
	}

	result, err := engine.GenerateProof(context.Background(), recipient, idxPtr)
	if err != nil {
		log.Fatalf("generate proof: %v", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("marshal proof: %v", err)
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func cmdClaim(args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	proofPath := fs.String("proof", "proof.json", "path to proof.json")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	if cfg.PrivateKey == "" {
		log.Fatal("submitting a claim requires private_key in the config")
	}
	client, err := chainclient.New(
		cfg.RPCURL,
		common.HexToAddress(cfg.DistributorAddr),
		common.HexToAddress(cfg.WrapperAddr),
		cfg.PrivateKey,
	)
	if err != nil {
		log.Fatalf("connect to chain: %v", err)
	}
	defer client.Close()

	data, err := os.ReadFile(*proofPath)
	if err != nil {
		log.Fatalf("read %s: %v", *proofPath, err)
	}
	var proof round.ProofResult
	if err := json.Unmarshal(data, &proof); err != nil {
		log.Fatalf("parse proof: %v", err)
	}

	engine := &round.Engine{Chain: chainAdapter{client}}
	receipt, err := engine.SubmitClaim(context.Background(), &proof)
	if err != nil {
		log.Fatalf("submit claim: %v", err)
	}
	fmt.Printf("claim tx: %s (status %d)\n", receipt.TxHash.Hex(), receipt.Status)
}

func cmdClaims(args []string) {
	fs := flag.NewFlagSet("claims", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	client, err := chainclient.New(
		cfg.RPCURL,
		common.HexToAddress(cfg.DistributorAddr),
		common.HexToAddress(cfg.WrapperAddr),
		cfg.PrivateKey,
	)
	if err != nil {
		log.Fatalf("connect to chain: %v", err)
	}
	defer client.Close()

	engine := &round.Engine{Chain: chainAdapter{client}, Store: buildStore(cfg)}
	claims, err := engine.ListClaims(context.Background())
	if err != nil {
		log.Fatalf("list claims: %v", err)
	}
	for _, c := range claims {
		fmt.Printf("%s\t%s\t%s\n", c.Recipient.Hex(), c.Token.Hex(), c.Amount.String())
	}
}

func cmdBalance(args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	addrHex := fs.String("addr", "", "holder address")
	tokenHex := fs.String("token", "", "ERC20 token address; omit to read the live wrapper share balance")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	if *addrHex == "" {
		log.Fatal("must specify -addr")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	client, err := chainclient.New(
		cfg.RPCURL,
		common.HexToAddress(cfg.DistributorAddr),
		common.HexToAddress(cfg.WrapperAddr),
		cfg.PrivateKey,
	)
	if err != nil {
		log.Fatalf("connect to chain: %v", err)
	}
	defer client.Close()

	holder := common.HexToAddress(*addrHex)
	var balance *big.Int
	if *tokenHex != "" {
		balance, err = client.ERC20BalanceOf(context.Background(), common.HexToAddress(*tokenHex), holder)
	} else {
		balance, err = client.WrapperBalanceOf(context.Background(), holder)
	}
	if err != nil {
		log.Fatalf("read balance: %v", err)
	}
	fmt.Println(balance.String())
}

func cmdServeMetrics(args []string) {
	fs := flag.NewFlagSet("serve-metrics", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}
	if cfg.MetricsListen == "" {
		log.Fatal("config missing metrics_listen")
	}
	opmetrics.Serve(cfg.MetricsListen)
	select {}
}
