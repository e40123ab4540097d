package cmd

import (
	"flag"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"tradesim/api"
	"tradesim/models"
)

// argPredictors complete positional arguments.
var argPredictors = map[string]complete.Predictor{
	"quote":   predict.Something,
	"watch":   predict.Something,
	"trade":   predict.Set{api.ActionBuy, api.ActionSell},
	"deposit": predict.Something,
}

// flagPredictors override the default predictor of a command flag.
var flagPredictors = map[string]map[string]complete.Predictor{
	"rates":      {"set": predict.Set(models.DisplayCurrencies)},
	"serve-fake": {"addr": predict.Set{"localhost:8000", ":8000"}},
}

// Completion describes the command line for shell completion. global holds
// the flags shared by every command.
func Completion(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagsOf(global, nil),
	}
	for _, c := range Commands {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		root.Sub[c.Name()] = &complete.Command{
			Flags: flagsOf(fs, flagPredictors[c.Name()]),
			Args:  argPredictors[c.Name()],
		}
	}
	return root
}

func flagsOf(fs *flag.FlagSet, override map[string]complete.Predictor) map[string]complete.Predictor {
	out := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := override[f.Name]; ok {
			out[f.Name] = p
			return
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			out[f.Name] = predict.Nothing
			return
		}
		out[f.Name] = predict.Something
	})
	return out
}
