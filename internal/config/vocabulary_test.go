package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapStatusDefaults(t *testing.T) {
	holder := NewStaticVocabularyHolder(DefaultVocabulary())

	cases := map[string]string{
		"COMPLETED":  "active",
		"completed":  "active",
		" Success ":  "active",
		"processing": "pending",
		"ACCEPTED":   "pending",
		"canceled":   "cancelled",
		"FAILED":     "cancelled",
		"expired":    "expired",
		"deleted":    "deleted",
	}
	for in, want := range cases {
		require.Equal(t, want, holder.MapStatus(in), "status %q", in)
	}
}

func TestMapStatusUnknownIsPending(t *testing.T) {
	holder := NewStaticVocabularyHolder(DefaultVocabulary())

	// A provider status we have never seen must not land the purchase in
	// a terminal state.
	require.Equal(t, "pending", holder.MapStatus("PROVISIONING"))
	require.Equal(t, "pending", holder.MapStatus(""))
}

func TestQRReady(t *testing.T) {
	holder := NewStaticVocabularyHolder(DefaultVocabulary())

	require.True(t, holder.QRReady("COMPLETED"))
	require.True(t, holder.QRReady("active"))
	require.False(t, holder.QRReady("pending"))
	require.False(t, holder.QRReady("cancelled"))
	require.False(t, holder.QRReady("PROVISIONING"))
}

func TestHolderSwap(t *testing.T) {
	holder := NewStaticVocabularyHolder(DefaultVocabulary())
	require.Equal(t, "pending", holder.MapStatus("provisioning"))

	holder.store(Vocabulary{
		StatusMap: map[string]string{"provisioning": "pending", "shipped": "active"},
		QRReady:   []string{"shipped"},
	})

	require.Equal(t, "active", holder.MapStatus("SHIPPED"))
	require.True(t, holder.QRReady("shipped"))
	require.False(t, holder.QRReady("completed"))
}
