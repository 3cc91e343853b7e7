package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/concurrency"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/engine"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/optimizer"
)

// options collects the flag values shared by both subcommands.
type options struct {
	configPath    string
	dataDir       string
	ccmAlgorithm  string
	gaSeed        int64
	gaGenerations int
	skipGA        bool
}

// fileConfig is the optional TOML file's shape. A flag set to something
// other than its default takes precedence over the file value; a flag
// left at its default value yields to the file value when the file sets
// one.
type fileConfig struct {
	Address       string `toml:"address"`
	DataDir       string `toml:"data_dir"`
	CCMAlgorithm  string `toml:"ccm_algorithm"`
	GASeed        int64  `toml:"ga_seed"`
	GAGenerations int    `toml:"ga_generations"`
	SkipGA        bool   `toml:"skip_ga"`
}

func (o *options) load() (fileConfig, error) {
	var fc fileConfig
	if o.configPath == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(o.configPath, &fc); err != nil {
		return fc, errors.Wrapf(err, "reading config %s", o.configPath)
	}
	return fc, nil
}

// buildEngine resolves options into a running engine.
func (o *options) buildEngine(log *logrus.Logger) (*engine.Engine, fileConfig, error) {
	fc, err := o.load()
	if err != nil {
		return nil, fc, err
	}
	dataDir := o.dataDir
	if dataDir == "" {
		dataDir = fc.DataDir
	}
	algo := o.ccmAlgorithm
	if algo == "2pl" && fc.CCMAlgorithm != "" {
		algo = fc.CCMAlgorithm
	}
	gaCfg := optimizer.Config{Seed: o.gaSeed}
	if fc.GASeed != 0 && o.gaSeed == 1 {
		gaCfg.Seed = fc.GASeed
	}
	gaCfg.Generations = o.gaGenerations
	if gaCfg.Generations == 0 {
		gaCfg.Generations = fc.GAGenerations
	}

	eng, err := engine.New(engine.Config{
		DataDir:     dataDir,
		Concurrency: concurrency.Config{Algorithm: concurrency.Algorithm(algo)},
		Optimizer:   gaCfg,
		SkipGA:      o.skipGA || fc.SkipGA,
		Logger:      log,
	})
	return eng, fc, err
}
