package preprocessing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

func cleanedSample() []Record {
	imp := NewImputer(testSchema())
	return imp.CleanAll([]Record{
		{"GrLivArea": 1500, "YearBuilt": 2000, "Neighborhood": "NAmes"},
		{"GrLivArea": 900, "YearBuilt": 1950, "Neighborhood": "OldTown", "Alley": "Pave"},
	})
}

func TestDictVectorizer_FeatureOrder(t *testing.T) {
	dv := NewDictVectorizer(testSchema())
	require.NoError(t, dv.Fit(cleanedSample()))

	assert.Equal(t, []string{
		"Alley=NA",
		"Alley=Pave",
		"GrLivArea",
		"LotFrontage",
		"MSZoning=RL",
		"Neighborhood=NAmes",
		"Neighborhood=OldTown",
		"YearBuilt",
	}, dv.FeatureNames())
	assert.Equal(t, 8, dv.NFeatures())
	assert.Equal(t, 2, dv.Vocabulary()["GrLivArea"])
}

func TestDictVectorizer_Transform(t *testing.T) {
	records := cleanedSample()
	dv := NewDictVectorizer(testSchema())
	X, err := dv.FitTransform(records)
	require.NoError(t, err)

	want := mat.NewDense(2, 8, []float64{
		1, 0, 1500, 70, 1, 1, 0, 2000,
		0, 1, 900, 70, 1, 0, 1, 1950,
	})
	assert.True(t, mat.Equal(want, X))

	// FitTransform == Fit; Transform
	other := NewDictVectorizer(testSchema())
	require.NoError(t, other.Fit(records))
	X2, err := other.Transform(records)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, X2))
}

func TestDictVectorizer_UnseenCategory(t *testing.T) {
	dv := NewDictVectorizer(testSchema())
	require.NoError(t, dv.Fit(cleanedSample()))

	r := NewImputer(testSchema()).Clean(Record{"GrLivArea": 1000, "Neighborhood": "Blueste"})
	X, err := dv.Transform([]Record{r})
	require.NoError(t, err)

	_, c := X.Dims()
	assert.Equal(t, dv.NFeatures(), c)
	assert.Zero(t, X.At(0, dv.Vocabulary()["Neighborhood=NAmes"]))
	assert.Zero(t, X.At(0, dv.Vocabulary()["Neighborhood=OldTown"]))
	assert.Equal(t, []string{"Neighborhood"}, dv.UnseenCategories(r))
}

func TestDictVectorizer_IgnoresFieldsOutsideSchema(t *testing.T) {
	dv := NewDictVectorizer(testSchema())
	require.NoError(t, dv.Fit(cleanedSample()))

	base := Record{"GrLivArea": 1200.0, "Neighborhood": "NAmes"}
	noisy := base.Clone()
	noisy["SalePrice"] = 1e6
	noisy["Id"] = "17"

	a, err := dv.Transform([]Record{base})
	require.NoError(t, err)
	b, err := dv.Transform([]Record{noisy})
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestDictVectorizer_DefaultCategoryEncodesAsDefault(t *testing.T) {
	imp := NewImputer(testSchema())
	dv := NewDictVectorizer(testSchema())
	require.NoError(t, dv.Fit(cleanedSample()))

	X, err := dv.Transform([]Record{imp.Clean(Record{"GrLivArea": 1000})})
	require.NoError(t, err)
	assert.Equal(t, 1.0, X.At(0, dv.Vocabulary()["MSZoning=RL"]))
}

func TestDictVectorizer_Errors(t *testing.T) {
	dv := NewDictVectorizer(testSchema())
	_, err := dv.Transform(cleanedSample())
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, dv.Fit(nil))
	assert.Equal(t, 0, dv.NFeatures())
	_, err = dv.Transform(cleanedSample())
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, dv.Fit(cleanedSample()))
	_, err = dv.Transform(nil)
	assert.True(t, errors.As(err, &ve))
}

func TestDictVectorizer_ConcurrentTransform(t *testing.T) {
	records := cleanedSample()
	dv := NewDictVectorizer(testSchema())
	want, err := dv.FitTransform(records)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := dv.Transform(records)
			assert.NoError(t, err)
			assert.True(t, mat.Equal(want, got))
		}()
	}
	wg.Wait()
}
