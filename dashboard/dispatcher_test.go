package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droughtdash/dataset"
	"droughtdash/locale"
	"droughtdash/ml"
	"droughtdash/predict"
	"droughtdash/store"
)

func fixtureTable() *dataset.Table {
	return dataset.NewTable([]dataset.Observation{
		{GeoCode: "75056", Year: 2019, Features: [dataset.FeatureCount]float64{10.2, 5.1, 3.3, 4.0, 6.6, 0.8}, HasLabel: true},
		{GeoCode: "75056", Year: 2020, Features: [dataset.FeatureCount]float64{8.0, 6.0, 3.9, 4.4, 5.0, 0.3}, Label: 1, HasLabel: true},
		{GeoCode: "13055", Year: 2019, Features: [dataset.FeatureCount]float64{2.0, 9.1, 6.0, 6.2, 0.5, 0.1}, Label: 1, HasLabel: true},
		{GeoCode: "69123", Year: 2019, Features: [dataset.FeatureCount]float64{4.0, 7.5, 5.0, 5.1, 2.5, 0.4}, HasLabel: true},
	})
}

// countingModel wraps a classifier and counts Predict calls.
type countingModel struct {
	ml.Classifier
	calls int
	err   error
}

func (c *countingModel) Predict(features [][]float64) ([]int, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Classifier.Predict(features)
}

func newModel(t *testing.T) *countingModel {
	t.Helper()
	tree, err := ml.NewDecisionTree([]int{0, 1}, []float64{0.1, 0.25, 0.05, 0.2, 0.15, 0.25}, []ml.TreeNode{ml.Leaf(7, 3)})
	require.NoError(t, err)
	return &countingModel{Classifier: tree}
}

type fixture struct {
	store      *store.Store
	model      *countingModel
	dispatcher *Dispatcher
	observed   []error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{model: newModel(t)}
	f.store = store.New(func(ctx context.Context) (*dataset.Table, ml.Classifier, error) {
		return fixtureTable(), f.model, nil
	}, nil, nil)
	_, err := f.store.Reload(context.Background())
	require.NoError(t, err)

	cache, err := predict.NewCache(16, nil)
	require.NoError(t, err)
	bundle, err := locale.NewBundle("fr")
	require.NoError(t, err)
	f.dispatcher = NewDispatcher(f.store, cache, bundle, nil, Options{
		DefaultGeoCode: "75056",
		MinYear:        2019,
		MaxYear:        2022,
		ObservePrediction: func(err error, took time.Duration) {
			f.observed = append(f.observed, err)
		},
	})
	return f
}

func TestDispatchPredict(t *testing.T) {
	f := newFixture(t)
	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2019})

	require.Equal(t, StatusOK, panel.Status, panel.Message)
	assert.Equal(t, "Classe prédite : 0", panel.Message)
	data, ok := panel.Data.(PredictionData)
	require.True(t, ok)
	assert.Equal(t, 0, data.PredictedLabel)
	assert.InDelta(t, 0.7, data.Probabilities[0], 1e-12)
	assert.Equal(t, []string{"Classe 0 : 70,00 %", "Classe 1 : 30,00 %"}, data.ClassLabels)
	assert.Empty(t, data.Notice)
	assert.Equal(t, []error{nil}, f.observed)
}

func TestDispatchPredictDefaults(t *testing.T) {
	f := newFixture(t)
	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict})
	require.Equal(t, StatusOK, panel.Status)
	data := panel.Data.(PredictionData)
	assert.Equal(t, "75056", data.GeoCode)
	assert.Equal(t, 2019, data.Year)
}

func TestDispatchAdvisories(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		status  Status
		message string
	}{
		{
			name:    "unknown code",
			cmd:     Command{Page: PageModel, Action: ActionPredict, GeoCode: "00000", Year: 2019},
			status:  StatusWarning,
			message: "Code INSEE non valide.",
		},
		{
			name:    "no data for year",
			cmd:     Command{Page: PageModel, Action: ActionPredict, GeoCode: "13055", Year: 2021},
			status:  StatusWarning,
			message: "Aucune donnée pour cette année.",
		},
		{
			name:    "year outside slider",
			cmd:     Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2030},
			status:  StatusWarning,
			message: "Choisissez une année entre 2019 et 2022.",
		},
		{
			name:    "english",
			cmd:     Command{Page: PageModel, Action: ActionPredict, GeoCode: "00000", Year: 2019, Locale: "en"},
			status:  StatusWarning,
			message: "Invalid INSEE code.",
		},
		{
			name:    "unknown pair",
			cmd:     Command{Page: PageMap, Action: ActionPredict},
			status:  StatusInvalid,
			message: "Commande inconnue : map / predict.",
		},
		{
			name:    "unknown page",
			cmd:     Command{Page: "settings", Action: ActionRender},
			status:  StatusInvalid,
			message: "Commande inconnue : settings / render.",
		},
		{
			name:    "unknown column",
			cmd:     Command{Page: PageMap, Action: ActionRender, Year: 2019, Column: "RAIN"},
			status:  StatusInvalid,
			message: "Variable inconnue : RAIN.",
		},
		{
			name:    "bad class count",
			cmd:     Command{Page: PageMap, Action: ActionRender, Year: 2019, Classes: 20},
			status:  StatusInvalid,
			message: "Le nombre de classes doit être compris entre 3 et 9.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			panel := f.dispatcher.Dispatch(context.Background(), tt.cmd)
			assert.Equal(t, tt.status, panel.Status)
			assert.Equal(t, tt.message, panel.Message)
			assert.Nil(t, panel.Data)
			assert.Equal(t, tt.cmd.Page, panel.Page)
		})
	}
}

func TestDispatchInferenceFailure(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("corrupt model")

	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2019})
	assert.Equal(t, StatusError, panel.Status)
	assert.Equal(t, "La prédiction a échoué. Réessayez plus tard.", panel.Message)
	assert.NotContains(t, panel.Message, "corrupt")

	var inferenceErr *predict.InferenceError
	require.Len(t, f.observed, 1)
	assert.ErrorAs(t, f.observed[0], &inferenceErr)
}

func TestDispatchUsesCache(t *testing.T) {
	f := newFixture(t)
	cmd := Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2019}
	f.dispatcher.Dispatch(context.Background(), cmd)
	f.dispatcher.Dispatch(context.Background(), cmd)
	assert.Equal(t, 1, f.model.calls)

	_, err := f.store.Reload(context.Background())
	require.NoError(t, err)
	f.dispatcher.Dispatch(context.Background(), cmd)
	assert.Equal(t, 2, f.model.calls, "a new snapshot invalidates cached views")
}

func TestDispatchDuplicateNotice(t *testing.T) {
	f := newFixture(t)
	rows := fixtureTable().Rows()
	f.store = store.New(func(ctx context.Context) (*dataset.Table, ml.Classifier, error) {
		return dataset.NewTable(append(rows, rows[0])), f.model, nil
	}, nil, nil)
	_, err := f.store.Reload(context.Background())
	require.NoError(t, err)
	f.dispatcher.snapshots = f.store

	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2019})
	require.Equal(t, StatusOK, panel.Status)
	assert.Equal(t, "2 lignes correspondent, la première est utilisée.", panel.Data.(PredictionData).Notice)
}

func TestDispatchMap(t *testing.T) {
	f := newFixture(t)
	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageMap, Action: ActionRender, Year: 2019, Column: "Températures"})
	require.Equal(t, StatusOK, panel.Status, panel.Message)

	data := panel.Data.(*MapData)
	assert.Equal(t, dataset.ColumnTemperature, data.Column.Key)
	assert.Len(t, data.Values, 3)
	assert.Len(t, data.Bins, 5)

	classes := make(map[string]int)
	for _, v := range data.Values {
		classes[v.GeoCode] = v.Class
	}
	assert.Equal(t, 0, classes["75056"])
	assert.Equal(t, 4, classes["13055"])
}

func TestDispatchMapDefaultsToOutcome(t *testing.T) {
	f := newFixture(t)
	data, err := f.dispatcher.Map(2019, "", 3)
	require.NoError(t, err)
	assert.Equal(t, dataset.ColumnDry, data.Column.Key)
	assert.Len(t, data.Values, 3)
}

func TestDispatchHeatmap(t *testing.T) {
	f := newFixture(t)
	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageHeatmap, Action: ActionRender})
	require.Equal(t, StatusOK, panel.Status, panel.Message)
	m := panel.Data.(*dataset.Matrix)
	assert.Len(t, m.Keys, len(dataset.Columns()))

	again, err := f.dispatcher.Correlation()
	require.NoError(t, err)
	assert.Same(t, m, again)

	_, err = f.store.Reload(context.Background())
	require.NoError(t, err)
	fresh, err := f.dispatcher.Correlation()
	require.NoError(t, err)
	assert.NotSame(t, m, fresh)
}

func TestDispatchBeforeLoad(t *testing.T) {
	bundle, err := locale.NewBundle("fr")
	require.NoError(t, err)
	empty := store.New(func(ctx context.Context) (*dataset.Table, ml.Classifier, error) {
		return nil, nil, errors.New("not yet")
	}, nil, nil)
	d := NewDispatcher(empty, nil, bundle, nil, Options{})

	for _, page := range Pages() {
		action := ActionRender
		if page == PageModel {
			action = ActionPredict
		}
		panel := d.Dispatch(context.Background(), Command{Page: page, Action: action})
		assert.Equal(t, StatusError, panel.Status, page)
		assert.Equal(t, "Les données sont en cours de chargement.", panel.Message)
	}
	_, err = d.Years()
	assert.ErrorIs(t, err, store.ErrNotLoaded)
}

func TestDispatchCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	panel := f.dispatcher.Dispatch(ctx, Command{Page: PageModel, Action: ActionPredict})
	assert.Equal(t, StatusError, panel.Status)
	assert.Zero(t, f.model.calls)
}

func TestDispatchModelRenderDoesNotPredict(t *testing.T) {
	f := newFixture(t)
	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionRender, GeoCode: "13055", Year: 2020})

	require.Equal(t, StatusOK, panel.Status)
	assert.Equal(t, "Modèle prédictif", panel.Message)
	assert.Equal(t, FormData{GeoCode: "75056", Year: 2019, MinYear: 2019, MaxYear: 2022}, panel.Data)
	assert.Zero(t, f.model.calls)
	assert.Empty(t, f.observed)
}

func TestDispatchMapNonFiniteValue(t *testing.T) {
	f := newFixture(t)
	rows := fixtureTable().Rows()
	rows[2].Features[1] = math.Inf(1)
	f.store = store.New(func(ctx context.Context) (*dataset.Table, ml.Classifier, error) {
		return dataset.NewTable(rows), f.model, nil
	}, nil, nil)
	_, err := f.store.Reload(context.Background())
	require.NoError(t, err)
	f.dispatcher.snapshots = f.store

	var panel Panel
	require.NotPanics(t, func() {
		panel = f.dispatcher.Dispatch(context.Background(), Command{Page: PageMap, Action: ActionRender, Year: 2019, Column: dataset.ColumnTemperature})
	})
	assert.Equal(t, StatusError, panel.Status)
	assert.Equal(t, "La prédiction a échoué. Réessayez plus tard.", panel.Message)
}

func TestFailed(t *testing.T) {
	f := newFixture(t)

	panel := f.dispatcher.Failed(Command{Page: PageModel, Action: ActionPredict, Locale: "en"}, fmt.Errorf("%w: year is a string", ErrMalformedCommand))
	assert.Equal(t, StatusInvalid, panel.Status)
	assert.Equal(t, "Malformed command.", panel.Message)
	assert.Equal(t, PageModel, panel.Page)

	panel = f.dispatcher.Failed(Command{}, errors.New("boom"))
	assert.Equal(t, StatusError, panel.Status)
	assert.Equal(t, "La prédiction a échoué. Réessayez plus tard.", panel.Message)
}
