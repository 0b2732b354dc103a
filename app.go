package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"blockmsg/artifact"
	"blockmsg/config"
	"blockmsg/dapp"
	"blockmsg/wallet"
)

// app is everything a command needs: the resolved configuration, the
// wallet and the dApp client on top of it.
type app struct {
	mu sync.Mutex
	// file is what gets saved back; cfg has the environment applied.
	file    config.Config
	cfg     config.Config
	cfgPath string

	resolved config.Resolved
	keyring  *wallet.Keyring
	client   *dapp.Client
}

// setup loads config, environment and artifact and builds the wallet and client.
func setup(opts *rootOptions, logger *log.Logger, approver wallet.Approver) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	file := config.LoadOrCreate(path)
	a := &app{cfgPath: path, file: file, cfg: file}
	a.cfg.Networks = append([]config.Network(nil), file.Networks...)

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	a.cfg.ApplyEnv(env)

	artifactPath := opts.artifactPath
	if artifactPath == "" {
		artifactPath = a.cfg.Artifact
	}
	art, err := artifact.Load(artifactPath)
	if err != nil {
		return nil, err
	}
	a.resolved, err = config.Resolve(a.cfg, art)
	if err != nil {
		return nil, err
	}
	logger.Debug("contract resolved",
		"address", a.resolved.ContractAddress,
		"artifact", a.resolved.ArtifactSource,
		"enforced", a.resolved.Enforced,
		"chain", a.resolved.RequiredChainID)

	keys, err := loadKeys(env, a.cfg.Keystore)
	if err != nil {
		return nil, err
	}

	var provider wallet.Provider
	if len(keys) > 0 {
		if opts.autoApprove || a.cfg.AutoApprove {
			approver = wallet.AutoApprove
		}
		networks := make([]wallet.ChainParams, 0, len(a.cfg.Networks))
		for _, n := range a.cfg.Networks {
			networks = append(networks, n.Params())
		}
		active, _ := a.cfg.ActiveNetwork()
		a.keyring, err = wallet.NewKeyring(keys, networks, active.ChainID,
			wallet.WithApprover(approver),
			wallet.WithLogger(logger.WithPrefix("wallet")),
			wallet.WithNetworkStore(a.storeNetworks),
		)
		if err != nil {
			return nil, err
		}
		provider = a.keyring
	} else {
		logger.Warn("no wallet keys configured")
	}

	a.client = dapp.New(provider, dapp.Settings{
		ContractAddress: a.resolved.ContractAddress,
		ABI:             a.resolved.ABI,
		Expectation: dapp.NetworkExpectation{
			RequiredChainID: a.resolved.RequiredChainID,
			Enforced:        a.resolved.Enforced,
		},
	}, dapp.WithLogger(logger))
	return a, nil
}

func loadKeys(env config.Env, keystoreDir string) ([]*ecdsa.PrivateKey, error) {
	keys, err := wallet.ParsePrivateKeys(env.PrivateKeys)
	if err != nil {
		return nil, err
	}
	if keystoreDir == "" {
		return keys, nil
	}
	pass := env.KeystorePassword
	if pass == "" {
		if pass, err = promptPassword(); err != nil {
			return nil, err
		}
	}
	stored, err := wallet.LoadKeystore(keystoreDir, pass)
	if err != nil {
		return nil, err
	}
	return append(keys, stored...), nil
}

// promptPassword reads the keystore passphrase without echo.
func promptPassword() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal: set BLOCKMSG_KEYSTORE_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Keystore password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer clear(raw)
	return string(raw), nil
}

func (a *app) storeNetworks(networks []wallet.ChainParams) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.MergeNetworks(networks)
	if a.file.MergeNetworks(networks) {
		_ = config.Save(a.cfgPath, a.file)
	}
}

func (a *app) setActiveNetwork(chainID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.SetActive(chainID)
	a.file.SetActive(chainID)
	_ = config.Save(a.cfgPath, a.file)
}

func (a *app) setLogger(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Logger = enabled
	a.file.Logger = enabled
	_ = config.Save(a.cfgPath, a.file)
}

// networks returns what the wallet knows, or the configured list without a wallet.
func (a *app) networks() ([]wallet.ChainParams, wallet.ChainParams) {
	if a.keyring != nil {
		return a.keyring.Networks(), a.keyring.Active()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []wallet.ChainParams
	for _, n := range a.cfg.Networks {
		out = append(out, n.Params())
	}
	active, _ := a.cfg.ActiveNetwork()
	return out, active.Params()
}

func (a *app) close() {
	if a.keyring != nil {
		a.keyring.Close()
	}
}
