package wildberries

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(srv *httptest.Server) *Client {
	c := NewClient(Config{Retries: 2, BaseRetryPause: time.Millisecond, Timeout: time.Second}, zap.NewNop().Sugar())
	c.CardBase = srv.URL
	c.StaticBase = srv.URL
	c.CatalogBase = srv.URL
	return c
}

func TestProductDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"products":[{"id":12345,"name":"boots","priceU":250000,"salePriceU":199900,"extended":{"basicSale":15,"clientSale":27}}]}}`)
	}))
	defer srv.Close()

	_, d, err := testClient(srv).ProductDetails("12345")
	require.NoError(t, err)
	assert.Equal(t, "boots", d.Name)
	assert.Equal(t, 2500.0, d.Price, "priceU is kopecks")
	assert.Equal(t, 1999.0, d.PriceSale)
	assert.Equal(t, 15, d.DiscountBase)
	assert.Equal(t, 27, d.DiscountClient)
}

func TestProductDetailsArticleMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"products":[{"id":999,"name":"x","priceU":1,"salePriceU":1,"extended":{}}]}}`)
	}))
	defer srv.Close()

	_, _, err := testClient(srv).ProductDetails("12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestProductDetailsMissingShape(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"data":{}}`,
		`{"data":{"products":[]}}`,
		`{"data":{"products":[{"id":12345,"name":"x"}]}}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		_, _, err := testClient(srv).ProductDetails("12345")
		srv.Close()
		require.Error(t, err, "body %s", body)
		assert.True(t, errors.Is(err, ErrSchema), "body %s", body)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":{"products":[{"id":1,"name":"x","priceU":100,"salePriceU":100,"extended":{"basicSale":0,"clientSale":0}}]}}`)
	}))
	defer srv.Close()

	_, d, err := testClient(srv).ProductDetails("1")
	require.NoError(t, err, "two retries after the initial attempt must suffice")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1.0, d.Price)
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := testClient(srv).ProductDetails("1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := testClient(srv).ProductDetails("1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema), "4xx is permanent")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCategoriesFlattening(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":1,"name":"Shoes","url":"/catalog/shoes","shard":"shoes","query":"cat=1","childs":[
				{"id":11,"name":"Kids","url":"/catalog/shoes/kids","shard":"shoes_kids","query":"cat=11","childs":[]}
			]},
			{"id":2,"name":"Home","url":"/catalog/home","childs":[]}
		]`)
	}))
	defer srv.Close()

	_, cats, err := testClient(srv).Categories()
	require.NoError(t, err)
	require.Len(t, cats, 3)

	byID := map[int64]CategoryNode{}
	for _, c := range cats {
		byID[c.ID] = c
	}
	assert.Nil(t, byID[1].ParentID)
	require.NotNil(t, byID[11].ParentID)
	assert.Equal(t, int64(1), *byID[11].ParentID)
	assert.Equal(t, 1, byID[1].ChildCount)
	require.NotNil(t, byID[1].Shard)
	assert.Equal(t, "shoes", *byID[1].Shard)
	assert.Nil(t, byID[2].Shard, "structural node has no routing")
}

func TestSubcategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"filters":[
			{"key":"price","items":[]},
			{"key":"xsubject","items":[{"id":101,"name":"Sandals","count":250},{"id":102,"name":"Boots","count":980}]}
		]}}`)
	}))
	defer srv.Close()

	_, subs, err := testClient(srv).Subcategories("shoes", "cat=1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, int64(101), subs[0].ID)
	assert.Equal(t, "Boots", subs[1].Name)
}

func TestSubcategoriesNoSubjectFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"filters":[{"key":"price","items":[]}]}}`)
	}))
	defer srv.Close()

	_, _, err := testClient(srv).Subcategories("shoes", "cat=1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestCatalogPage(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		fmt.Fprint(w, `{"data":{"products":[{"id":42,"name":"boots","salePriceU":149900}]}}`)
	}))
	defer srv.Close()

	items, err := testClient(srv).CatalogPage("shoes", "cat=1", 101, 2000, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "42", items[0].Article)
	assert.Equal(t, 1499.0, items[0].PriceSale)
	assert.Contains(t, gotURL, "xsubject=101")
	assert.Contains(t, gotURL, "priceU=0;200000", "ceiling converted to kopecks")
}
