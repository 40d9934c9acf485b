package core

import "context"

// SaveSettings validates and stores a settings form document.
func (s *Service) SaveSettings(ctx context.Context, key string, values map[string]any) (Setting, Result, error) {
	var saved Setting
	res, err := s.run(ctx, "save_settings", key, true, func(ctx context.Context) (string, Result, error) {
		form, ok := s.index.Settings(key)
		if !ok {
			return key, Result{}, ErrUnknownSettings{Key: key}
		}
		doc := Setting{Key: key, Values: prepareFields(form.Fields, values)}
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			saved, err = tx.SaveSetting(doc)
			return err
		})
		return key, res, err
	})
	return saved, res, err
}

// GetSettings returns the stored document layered over the form defaults.
func (s *Service) GetSettings(_ context.Context, key string) (Setting, error) {
	form, ok := s.index.Settings(key)
	if !ok {
		return Setting{}, ErrUnknownSettings{Key: key}
	}
	out := Setting{Key: key, Values: form.Defaults()}
	if stored, ok := s.store.GetSetting(key); ok {
		for k, v := range stored.Values {
			out.Values[k] = v
		}
		out.UpdatedAt = stored.UpdatedAt
	}
	return out, nil
}

// SettingsForms lists the registered settings forms.
func (s *Service) SettingsForms() []SettingsForm { return s.index.SettingsForms() }
