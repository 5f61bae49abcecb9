package storage

import "context"

type AutoResponse struct {
	GuildID  string
	Trigger  string
	Response string
	IsRegex  bool
}

func (s *Store) AddAutoResponse(ctx context.Context, ar AutoResponse) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO auto_responses (guild_id, trigger_text, response, is_regex)
		VALUES (?, ?, ?, ?)
	`, ar.GuildID, ar.Trigger, ar.Response, boolToInt(ar.IsRegex))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) RemoveAutoResponse(ctx context.Context, guildID, trigger string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auto_responses WHERE guild_id = ? AND trigger_text = ?`, guildID, trigger)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListAutoResponses(ctx context.Context, guildID string) ([]AutoResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, trigger_text, response, is_regex
		FROM auto_responses WHERE guild_id = ? ORDER BY trigger_text
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []AutoResponse
	for rows.Next() {
		var ar AutoResponse
		var isRegex int
		if err := rows.Scan(&ar.GuildID, &ar.Trigger, &ar.Response, &isRegex); err != nil {
			return nil, err
		}
		ar.IsRegex = isRegex == 1
		responses = append(responses, ar)
	}
	return responses, rows.Err()
}
