package vk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockCommunityAPI: мок для CommunityAPI.
type mockCommunityAPI struct {
	mock.Mock
}

func (m *mockCommunityAPI) GroupByID(ctx context.Context, idOrName string) (Group, error) {
	args := m.Called(ctx, idOrName)
	return args.Get(0).(Group), args.Error(1)
}

func (m *mockCommunityAPI) ResolveScreenName(ctx context.Context, name string) (ResolvedName, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(ResolvedName), args.Error(1)
}

func (m *mockCommunityAPI) WallGet(ctx context.Context, ownerID string, count, offset int) (WallPage, error) {
	args := m.Called(ctx, ownerID, count, offset)
	return args.Get(0).(WallPage), args.Error(1)
}

func newTestResolver(api CommunityAPI) *Resolver {
	return NewResolver(api, WithResolverLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

var errTransport = errors.New("connection reset by peer")

func TestResolver_DirectLookupShortCircuits(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "apiclub").Return(Group{ID: 1, ScreenName: "apiclub"}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "apiclub")

	require.NoError(t, err)
	assert.Equal(t, "1", id)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "WallGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_DirectLookupDropsSign(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "114469067").Return(Group{ID: -114469067}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "-114469067")

	require.NoError(t, err)
	assert.Equal(t, "114469067", id)
	api.AssertExpectations(t)
}

func TestResolver_NumericSkipsScreenName(t *testing.T) {
	for _, ref := range []string{"0", "1", "114469067", "-42"} {
		t.Run(ref, func(t *testing.T) {
			api := new(mockCommunityAPI)
			api.On("GroupByID", mock.Anything, mock.Anything).Return(Group{}, errTransport).Once()
			api.On("WallGet", mock.Anything, mock.Anything, 1, 0).Return(WallPage{}, errTransport).Once()

			_, err := newTestResolver(api).Resolve(context.Background(), ref)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
			api.AssertExpectations(t)
		})
	}
}

func TestResolver_ZeroIsNumericReference(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "0").Return(Group{}, errTransport).Once()
	api.On("WallGet", mock.Anything, "0", 1, 0).Return(WallPage{}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "0")

	require.NoError(t, err)
	assert.Equal(t, "0", id)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
}

func TestResolver_WallProbeScenario(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "114469067").Return(Group{}, errTransport).Once()
	api.On("WallGet", mock.Anything, "-114469067", 1, 0).Return(WallPage{Count: 0, Items: []WallItem{}}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "114469067")

	require.NoError(t, err)
	assert.Equal(t, "114469067", id)
	api.AssertExpectations(t)
}

func TestResolver_ScreenNameStrategy(t *testing.T) {
	t.Run("community wins", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "lentach").Return(Group{}, errTransport).Once()
		api.On("ResolveScreenName", mock.Anything, "lentach").Return(ResolvedName{Kind: KindCommunity, ID: 29534144}, nil).Once()

		id, err := newTestResolver(api).Resolve(context.Background(), "https://vk.com/lentach")

		require.NoError(t, err)
		assert.Equal(t, "29534144", id)
		api.AssertExpectations(t)
		api.AssertNotCalled(t, "WallGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("user profile is a miss, wall falls back to literal", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "durov").Return(Group{}, errTransport).Once()
		api.On("ResolveScreenName", mock.Anything, "durov").Return(ResolvedName{Kind: KindUser, ID: 1}, nil).Twice()
		api.On("WallGet", mock.Anything, "durov", 1, 0).Return(WallPage{}, errTransport).Once()

		_, err := newTestResolver(api).Resolve(context.Background(), "durov")

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "durov", nf.Reference)
		assert.Len(t, nf.Attempts, 3)
		assert.ErrorIs(t, err, errNotCommunity)
		api.AssertExpectations(t)
	})
}

func TestResolver_WallProbeResolvesNameInline(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "somepub").Return(Group{}, errTransport).Once()
	api.On("ResolveScreenName", mock.Anything, "somepub").Return(ResolvedName{}, errTransport).Once()
	api.On("ResolveScreenName", mock.Anything, "somepub").Return(ResolvedName{Kind: KindCommunity, ID: 777}, nil).Once()
	api.On("WallGet", mock.Anything, "-777", 1, 0).Return(WallPage{Count: 3}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "somepub")

	require.NoError(t, err)
	assert.Equal(t, "777", id)
	api.AssertExpectations(t)
}

func TestResolver_WallProbeLiteralOwner(t *testing.T) {
	t.Run("owner taken from first item", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "hidden").Return(Group{}, errTransport).Once()
		api.On("ResolveScreenName", mock.Anything, "hidden").Return(ResolvedName{}, errTransport).Twice()
		api.On("WallGet", mock.Anything, "hidden", 1, 0).
			Return(WallPage{Count: 1, Items: []WallItem{{ID: 5, OwnerID: -31337}}}, nil).Once()

		id, err := newTestResolver(api).Resolve(context.Background(), "hidden")

		require.NoError(t, err)
		assert.Equal(t, "31337", id)
	})

	t.Run("empty wall gives no id", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "hidden").Return(Group{}, errTransport).Once()
		api.On("ResolveScreenName", mock.Anything, "hidden").Return(ResolvedName{}, errTransport).Twice()
		api.On("WallGet", mock.Anything, "hidden", 1, 0).Return(WallPage{}, nil).Once()

		_, err := newTestResolver(api).Resolve(context.Background(), "hidden")

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.ErrorIs(t, err, errLiteralOwner)
	})
}

func TestResolver_AuthErrorShortCircuits(t *testing.T) {
	authErr := errors.Join(ErrAuth, errors.New("User authorization failed: invalid access_token (4)."))

	t.Run("in direct lookup", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "apiclub").Return(Group{}, authErr).Once()

		_, err := newTestResolver(api).Resolve(context.Background(), "apiclub")

		var ae *AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "direct_lookup", ae.Strategy)
		assert.Equal(t, "apiclub", ae.Reference)
		assert.ErrorIs(t, err, ErrAuth)
		api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
		api.AssertNotCalled(t, "WallGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("in screen name resolution", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "apiclub").Return(Group{}, errTransport).Once()
		api.On("ResolveScreenName", mock.Anything, "apiclub").Return(ResolvedName{}, authErr).Once()

		_, err := newTestResolver(api).Resolve(context.Background(), "apiclub")

		var ae *AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "screen_name", ae.Strategy)
		api.AssertExpectations(t)
		api.AssertNotCalled(t, "WallGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("in wall probe", func(t *testing.T) {
		api := new(mockCommunityAPI)
		api.On("GroupByID", mock.Anything, "42").Return(Group{}, errTransport).Once()
		api.On("WallGet", mock.Anything, "-42", 1, 0).Return(WallPage{}, authErr).Once()

		_, err := newTestResolver(api).Resolve(context.Background(), "42")

		var ae *AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "wall_probe", ae.Strategy)
	})
}

func TestResolver_EmptyReference(t *testing.T) {
	api := new(mockCommunityAPI)

	_, err := newTestResolver(api).Resolve(context.Background(), "  ")

	assert.ErrorIs(t, err, ErrEmptyReference)
	api.AssertExpectations(t)
}

func TestResolver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "apiclub").Return(Group{}, context.Canceled).Once()

	_, err := newTestResolver(api).Resolve(ctx, "apiclub")

	assert.ErrorIs(t, err, context.Canceled)
	api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		in      string
		raw     string
		numeric bool
		digits  string
	}{
		{in: "0", raw: "0", numeric: true, digits: "0"},
		{in: "-0", raw: "-0", numeric: true, digits: "0"},
		{in: "-114469067", raw: "-114469067", numeric: true, digits: "114469067"},
		{in: "007", raw: "007", numeric: true, digits: "7"},
		{in: "apiclub", raw: "apiclub"},
		{in: " https://vk.com/apiclub/ ", raw: "apiclub"},
		{in: "@club1", raw: "club1"},
		{in: "99999999999999999999", raw: "99999999999999999999", numeric: true, digits: "99999999999999999999"},
		{in: "-9223372036854775808", raw: "-9223372036854775808", numeric: true, digits: "9223372036854775808"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, err := parseReference(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, ref.raw)
			assert.Equal(t, tt.numeric, ref.numeric)
			assert.Equal(t, tt.digits, ref.digits)
		})
	}
}

func TestResolver_OverflowingDigitsStayNumeric(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "99999999999999999999").Return(Group{}, errTransport).Once()
	api.On("WallGet", mock.Anything, "-99999999999999999999", 1, 0).Return(WallPage{}, errTransport).Once()

	_, err := newTestResolver(api).Resolve(context.Background(), "99999999999999999999")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "ResolveScreenName", mock.Anything, mock.Anything)
}

func TestResolver_MinInt64HasNoSign(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "9223372036854775808").Return(Group{}, errTransport).Once()
	api.On("WallGet", mock.Anything, "-9223372036854775808", 1, 0).Return(WallPage{}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "-9223372036854775808")

	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", id)
	assert.NotContains(t, id, "-")
	api.AssertExpectations(t)
}

func TestUnsigned(t *testing.T) {
	assert.Equal(t, "0", unsigned(0))
	assert.Equal(t, "31337", unsigned(-31337))
	assert.Equal(t, "9223372036854775808", unsigned(math.MinInt64))
	assert.Equal(t, "9223372036854775807", unsigned(math.MaxInt64))
}

func TestResolver_LiteralOwnerMinInt64(t *testing.T) {
	api := new(mockCommunityAPI)
	api.On("GroupByID", mock.Anything, "hidden").Return(Group{}, errTransport).Once()
	api.On("ResolveScreenName", mock.Anything, "hidden").Return(ResolvedName{}, errTransport).Twice()
	api.On("WallGet", mock.Anything, "hidden", 1, 0).
		Return(WallPage{Count: 1, Items: []WallItem{{ID: 1, OwnerID: math.MinInt64}}}, nil).Once()

	id, err := newTestResolver(api).Resolve(context.Background(), "hidden")

	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", id)
}
