// Command web3 prints the positions, candidates and vote counts stored in an
// election contract. It is a debugging aid for operators.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/web3"
)

var rpcs = []string{
	"https://sepolia.gateway.tenderly.co",
	"https://rpc.ankr.com/eth_sepolia",
	"https://eth-sepolia.public.blastapi.io",
	"https://1rpc.io/sepolia",
}

func main() {
	contract := flag.String("contract", "", "address of the election contract")
	rpc := flag.String("rpc", "", "web3 endpoint, defaults to a list of public sepolia endpoints")
	flag.Parse()
	log.Init("info", "stdout", nil)
	if *contract == "" {
		flag.Usage()
		os.Exit(1)
	}

	endpoints := rpcs
	if *rpc != "" {
		endpoints = []string{*rpc}
	}
	contracts, err := web3.NewContracts(endpoints[0])
	if err != nil {
		log.Fatal(err)
	}
	defer contracts.Close()
	for i := 1; i < len(endpoints); i++ {
		if err := contracts.AddWeb3Endpoint(endpoints[i]); err != nil {
			log.Warnw("failed to add endpoint", "rpc", endpoints[i], "err", err)
		}
	}
	log.Infow("contracts initialized", "chainId", contracts.ChainID)

	election, err := contracts.Election(*contract)
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	positions, err := election.ListPositions(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, position := range positions {
		fmt.Println(position)
		candidates, err := election.ListCandidates(ctx, position)
		if err != nil {
			log.Fatal(err)
		}
		for _, candidate := range candidates {
			count, err := election.VoteCount(ctx, position, candidate)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("  %-30s %d\n", candidate, count)
		}
	}
}
