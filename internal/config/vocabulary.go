package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Vocabulary maps provider-reported status strings onto internal purchase
// statuses and defines which provider statuses make the QR code servable.
// The provider's status strings are an external contract that can grow, so
// this lives in a hot-reloadable file rather than in constants.
type Vocabulary struct {
	StatusMap map[string]string `mapstructure:"statusMap"`
	QRReady   []string          `mapstructure:"qrReady"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		StatusMap: map[string]string{
			"pending":    "pending",
			"processing": "pending",
			"accepted":   "pending",
			"active":     "active",
			"completed":  "active",
			"success":    "active",
			"done":       "active",
			"ready":      "active",
			"expired":    "expired",
			"cancelled":  "cancelled",
			"canceled":   "cancelled",
			"failed":     "cancelled",
			"deleted":    "deleted",
		},
		QRReady: []string{"completed", "success", "active", "ready", "done"},
	}
}

// VocabularyHolder serves the current vocabulary to concurrent readers and
// swaps it atomically when the config file changes on disk.
type VocabularyHolder struct {
	current atomic.Value // holds vocabularyView
}

type vocabularyView struct {
	statusMap map[string]string
	qrReady   map[string]struct{}
}

func NewVocabularyHolder(log *zap.Logger) (*VocabularyHolder, error) {
	log = log.Named("config.vocabulary")

	v := viper.New()
	v.SetConfigName("provider")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/esimgate/config")
	v.AddConfigPath("/etc/esimgate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESIMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &VocabularyHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.store(DefaultVocabulary())
		return holder, nil
	}

	vocab, err := unmarshalVocabulary(v)
	if err != nil {
		return nil, err
	}
	holder.store(vocab)

	v.WatchConfig()
	v.OnConfigChange(func(fsnotify.Event) {
		reloaded, err := unmarshalVocabulary(v)
		if err != nil {
			log.Warn("provider vocabulary reload failed, keeping previous", zap.Error(err))
			return
		}
		holder.store(reloaded)
		log.Info("provider vocabulary reloaded")
	})

	return holder, nil
}

// NewStaticVocabularyHolder builds a holder around a fixed vocabulary.
// Used by tests and by callers that need a holder without a config file.
func NewStaticVocabularyHolder(vocab Vocabulary) *VocabularyHolder {
	holder := &VocabularyHolder{}
	holder.store(vocab)
	return holder
}

func unmarshalVocabulary(v *viper.Viper) (Vocabulary, error) {
	var vocab Vocabulary
	if err := v.UnmarshalKey("provider", &vocab); err != nil {
		return Vocabulary{}, err
	}
	defaults := DefaultVocabulary()
	if len(vocab.StatusMap) == 0 {
		vocab.StatusMap = defaults.StatusMap
	}
	if len(vocab.QRReady) == 0 {
		vocab.QRReady = defaults.QRReady
	}
	return vocab, nil
}

func (h *VocabularyHolder) store(vocab Vocabulary) {
	view := vocabularyView{
		statusMap: make(map[string]string, len(vocab.StatusMap)),
		qrReady:   make(map[string]struct{}, len(vocab.QRReady)),
	}
	for from, to := range vocab.StatusMap {
		view.statusMap[strings.ToLower(strings.TrimSpace(from))] = strings.ToLower(strings.TrimSpace(to))
	}
	for _, status := range vocab.QRReady {
		view.qrReady[strings.ToLower(strings.TrimSpace(status))] = struct{}{}
	}
	h.current.Store(view)
}

// MapStatus translates a provider status string into an internal purchase
// status. Unknown strings map to "pending" so a new provider status never
// flips a purchase into a terminal state by accident.
func (h *VocabularyHolder) MapStatus(providerStatus string) string {
	view := h.current.Load().(vocabularyView)
	if mapped, ok := view.statusMap[strings.ToLower(strings.TrimSpace(providerStatus))]; ok {
		return mapped
	}
	return "pending"
}

// QRReady reports whether the provider status permits serving the QR code.
func (h *VocabularyHolder) QRReady(providerStatus string) bool {
	view := h.current.Load().(vocabularyView)
	_, ok := view.qrReady[strings.ToLower(strings.TrimSpace(providerStatus))]
	return ok
}
