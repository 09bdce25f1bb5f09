// Command node starts a sequencer validator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tolelom/sequencer/clock"
	"github.com/tolelom/sequencer/config"
	"github.com/tolelom/sequencer/crypto/certgen"
	"github.com/tolelom/sequencer/node"
	"github.com/tolelom/sequencer/storage"
	"github.com/tolelom/sequencer/wallet"
	"github.com/tolelom/sequencer/zkrand"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("SEQUENCER_PASSWORD")
	if password == "" {
		log.Println("WARNING: SEQUENCER_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", w.PubKey().Hex())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfg, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		nodeID := fmt.Sprintf("validator-%d", cfg.LocalValidator)
		if err := certgen.GenerateAll(*genCerts, nodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, nodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	pubKey := privKey.Public()

	// ---- open DB ----
	if err := os.MkdirAll(cfg.PathToDB, 0755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.PathToDB)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	blockStore := storage.NewLevelBlockStore(db)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for the node HTTP surface")
	}

	// ---- randomness prover ----
	// Seeded from the shared network_seed config field, not the node's own
	// key: every validator must derive/verify identical receipts for the
	// same (validator, height) pair.
	seed, err := cfg.NetworkSeedBytes()
	if err != nil {
		log.Fatalf("network seed: %v", err)
	}
	prover := zkrand.NewDeterministicProver(seed)

	// ---- wire the server state (C1-C9) ----
	state, err := node.New(cfg, blockStore, privKey, pubKey, clock.System{}, prover, tlsCfg)
	if err != nil {
		log.Fatalf("build node state: %v", err)
	}
	if err := state.Init(uint32(time.Now().Unix())); err != nil {
		log.Fatalf("init: %v", err)
	}
	log.Printf("Height recovered: %d", state.Log.CurrentHeight())

	if err := storage.ReplayTransactionsInto(db, state.Trie); err != nil {
		log.Fatalf("rebuild trie: %v", err)
	}
	log.Printf("Trie rebuilt: %d leaves", state.Trie.Len())

	// ---- HTTP surface ----
	srv := node.NewServer(cfg.APIHostWithPort, state, tlsCfg)
	if err := srv.Start(); err != nil {
		log.Fatalf("http start: %v", err)
	}
	defer srv.Stop()
	log.Printf("Listening on %s", cfg.APIHostWithPort)

	// ---- engine + synchronizer tickers ----
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTicker(1*time.Second, done, func() {
			if err := state.Tick(); err != nil {
				log.Printf("[engine] tick: %v", err)
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTicker(time.Duration(cfg.SyncIntervalSecs)*time.Second, done, state.SyncTick)
	}()

	log.Printf("Consensus running (validator: %s)", pubKey.Hex())

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	close(done)
	wg.Wait()

	// Deferred calls run in LIFO: srv.Stop -> db.Close
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults (will fail validation without validators).", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// runTicker calls fn every interval until stop is closed, grounded on the
// teacher's consensus.PoA.Run ticker loop.
func runTicker(interval time.Duration, stop <-chan struct{}, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-stop:
			return
		}
	}
}
