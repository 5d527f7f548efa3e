package db

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	errs "whoopsync/internal/errors"
	"whoopsync/whoop"
)

// Store writes Whoop records into PostgreSQL with idempotent upserts: re-
// ingesting a record overwrites mutable fields but preserves created_at.
type Store struct {
	db DBTX
}

// NewStore creates a metric store over the given connection.
func NewStore(conn DBTX) *Store {
	return &Store{db: conn}
}

// UpsertUserProfile upserts the user profile row keyed by user id.
func (s *Store) UpsertUserProfile(ctx context.Context, profile *whoop.UserProfile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO whoop_user_profile (user_id, email, first_name, last_name, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()`,
		userID(profile.UserID), profile.Email, profile.FirstName, profile.LastName)
	if err != nil {
		return errs.Wrapf(err, "upserting user profile")
	}
	log.Info().Msg("Upserted user profile")
	return nil
}

// UpsertBodyMeasurement replaces the user's body measurement row. The delete
// and insert run in a single statement so the replacement is atomic.
func (s *Store) UpsertBodyMeasurement(ctx context.Context, m *whoop.BodyMeasurement) error {
	_, err := s.db.Exec(ctx, `
		WITH deleted AS (
			DELETE FROM whoop_body_measurement WHERE user_id = $1
		)
		INSERT INTO whoop_body_measurement (user_id, height_meter, weight_kilogram, max_heart_rate)
		VALUES ($1, $2, $3, $4)`,
		userID(m.UserID), m.HeightMeter, m.WeightKilogram, m.MaxHeartRate)
	if err != nil {
		return errs.Wrapf(err, "upserting body measurement")
	}
	log.Info().Msg("Upserted body measurement")
	return nil
}

// UpsertCycles upserts cycle records. Returns the number of records written;
// an empty input is a no-op returning 0.
func (s *Store) UpsertCycles(ctx context.Context, records []whoop.Cycle) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		var strain, kilojoule, avgHeartRate, maxHeartRate any
		if score := rec.Score; score != nil {
			strain = score.Strain
			kilojoule = score.Kilojoule
			avgHeartRate = score.AverageHeartRate
			maxHeartRate = score.MaxHeartRate
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO whoop_cycle
				(id, user_id, start_time, end_time, timezone_offset,
				 score_strain, score_kilojoule, score_average_heart_rate, score_max_heart_rate,
				 updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (id) DO UPDATE SET
				end_time = EXCLUDED.end_time,
				score_strain = EXCLUDED.score_strain,
				score_kilojoule = EXCLUDED.score_kilojoule,
				score_average_heart_rate = EXCLUDED.score_average_heart_rate,
				score_max_heart_rate = EXCLUDED.score_max_heart_rate,
				updated_at = NOW()`,
			strconv.FormatInt(rec.ID, 10), userID(rec.UserID), rec.Start, rec.End,
			rec.TimezoneOffset, strain, kilojoule, avgHeartRate, maxHeartRate)
		if err != nil {
			return 0, errs.Wrapf(err, "upserting cycle %d", rec.ID)
		}
	}
	log.Info().Int("records", len(records)).Msg("Upserted cycle records")
	return len(records), nil
}

// UpsertRecoveries upserts recovery records keyed by cycle id.
func (s *Store) UpsertRecoveries(ctx context.Context, records []whoop.Recovery) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		var recoveryScore, restingHeartRate, hrvRmssd, spo2, skinTemp any
		if score := rec.Score; score != nil {
			recoveryScore = score.RecoveryScore
			restingHeartRate = score.RestingHeartRate
			hrvRmssd = score.HRVRmssdMilli
			spo2 = score.SpO2Percentage
			skinTemp = score.SkinTempCelsius
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO whoop_recovery
				(cycle_id, user_id, sleep_id,
				 score_recovery_score, score_resting_heart_rate, score_hrv_rmssd_milli,
				 score_spo2_percentage, score_skin_temp_celsius,
				 updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (cycle_id) DO UPDATE SET
				sleep_id = EXCLUDED.sleep_id,
				score_recovery_score = EXCLUDED.score_recovery_score,
				score_resting_heart_rate = EXCLUDED.score_resting_heart_rate,
				score_hrv_rmssd_milli = EXCLUDED.score_hrv_rmssd_milli,
				score_spo2_percentage = EXCLUDED.score_spo2_percentage,
				score_skin_temp_celsius = EXCLUDED.score_skin_temp_celsius,
				updated_at = NOW()`,
			strconv.FormatInt(rec.CycleID, 10), userID(rec.UserID), rec.SleepID,
			recoveryScore, restingHeartRate, hrvRmssd, spo2, skinTemp)
		if err != nil {
			return 0, errs.Wrapf(err, "upserting recovery for cycle %d", rec.CycleID)
		}
	}
	log.Info().Int("records", len(records)).Msg("Upserted recovery records")
	return len(records), nil
}

// UpsertSleeps upserts sleep records, flattening the nested stage summary
// and sleep-need structures. Absent nested objects become NULL columns.
func (s *Store) UpsertSleeps(ctx context.Context, records []whoop.Sleep) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		var (
			inBed, awake, noData, lightSleep, slowWave, remSleep  any
			sleepCycles, disturbances                             any
			baseline, fromSleepDebt, fromRecentStrain, fromNap    any
			respiratoryRate, performance, consistency, efficiency any
		)
		if score := rec.Score; score != nil {
			if stages := score.StageSummary; stages != nil {
				inBed = stages.TotalInBedTimeMilli
				awake = stages.TotalAwakeTimeMilli
				noData = stages.TotalNoDataTimeMilli
				lightSleep = stages.TotalLightSleepTimeMilli
				slowWave = stages.TotalSlowWaveSleepTimeMilli
				remSleep = stages.TotalREMSleepTimeMilli
				sleepCycles = stages.SleepCycleCount
				disturbances = stages.DisturbanceCount
			}
			if needed := score.SleepNeeded; needed != nil {
				baseline = needed.BaselineMilli
				fromSleepDebt = needed.NeedFromSleepDebtMilli
				fromRecentStrain = needed.NeedFromRecentStrainMilli
				fromNap = needed.NeedFromRecentNapMilli
			}
			respiratoryRate = score.RespiratoryRate
			performance = score.SleepPerformancePercentage
			consistency = score.SleepConsistencyPercentage
			efficiency = score.SleepEfficiencyPercentage
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO whoop_sleep
				(id, user_id, start_time, end_time, timezone_offset, nap,
				 score_stage_summary_total_in_bed_time_milli,
				 score_stage_summary_total_awake_time_milli,
				 score_stage_summary_total_no_data_time_milli,
				 score_stage_summary_total_light_sleep_time_milli,
				 score_stage_summary_total_slow_wave_sleep_time_milli,
				 score_stage_summary_total_rem_sleep_time_milli,
				 score_stage_summary_sleep_cycle_count,
				 score_stage_summary_disturbance_count,
				 score_sleep_needed_baseline_milli,
				 score_sleep_needed_need_from_sleep_debt_milli,
				 score_sleep_needed_need_from_recent_strain_milli,
				 score_sleep_needed_need_from_recent_nap_milli,
				 score_respiratory_rate,
				 score_sleep_performance_percentage,
				 score_sleep_consistency_percentage,
				 score_sleep_efficiency_percentage,
				 updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, NOW())
			ON CONFLICT (id) DO UPDATE SET
				end_time = EXCLUDED.end_time,
				score_stage_summary_total_in_bed_time_milli =
					EXCLUDED.score_stage_summary_total_in_bed_time_milli,
				score_stage_summary_total_awake_time_milli =
					EXCLUDED.score_stage_summary_total_awake_time_milli,
				score_stage_summary_total_rem_sleep_time_milli =
					EXCLUDED.score_stage_summary_total_rem_sleep_time_milli,
				score_sleep_performance_percentage =
					EXCLUDED.score_sleep_performance_percentage,
				updated_at = NOW()`,
			rec.ID, userID(rec.UserID), rec.Start, rec.End, rec.TimezoneOffset, rec.Nap,
			inBed, awake, noData, lightSleep, slowWave, remSleep,
			sleepCycles, disturbances,
			baseline, fromSleepDebt, fromRecentStrain, fromNap,
			respiratoryRate, performance, consistency, efficiency)
		if err != nil {
			return 0, errs.Wrapf(err, "upserting sleep %s", rec.ID)
		}
	}
	log.Info().Int("records", len(records)).Msg("Upserted sleep records")
	return len(records), nil
}

// UpsertWorkouts upserts workout records, flattening heart-rate zone
// durations.
func (s *Store) UpsertWorkouts(ctx context.Context, records []whoop.Workout) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		var (
			strain, avgHeartRate, maxHeartRate, kilojoule          any
			percentRecorded, distance, altitudeGain, altitudeDelta any
			zone0, zone1, zone2, zone3, zone4, zone5               any
		)
		if score := rec.Score; score != nil {
			strain = score.Strain
			avgHeartRate = score.AverageHeartRate
			maxHeartRate = score.MaxHeartRate
			kilojoule = score.Kilojoule
			percentRecorded = score.PercentRecorded
			distance = score.DistanceMeter
			altitudeGain = score.AltitudeGainMeter
			altitudeDelta = score.AltitudeChangeMeter
			if zones := score.ZoneDuration; zones != nil {
				zone0 = zones.ZoneZeroMilli
				zone1 = zones.ZoneOneMilli
				zone2 = zones.ZoneTwoMilli
				zone3 = zones.ZoneThreeMilli
				zone4 = zones.ZoneFourMilli
				zone5 = zones.ZoneFiveMilli
			}
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO whoop_workout
				(id, user_id, start_time, end_time, timezone_offset, sport_id,
				 score_strain, score_average_heart_rate, score_max_heart_rate,
				 score_kilojoule, score_percent_recorded, score_distance_meter,
				 score_altitude_gain_meter, score_altitude_change_meter,
				 score_zone_duration_zone_zero_milli, score_zone_duration_zone_one_milli,
				 score_zone_duration_zone_two_milli, score_zone_duration_zone_three_milli,
				 score_zone_duration_zone_four_milli, score_zone_duration_zone_five_milli,
				 updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, NOW())
			ON CONFLICT (id) DO UPDATE SET
				end_time = EXCLUDED.end_time,
				score_strain = EXCLUDED.score_strain,
				score_kilojoule = EXCLUDED.score_kilojoule,
				updated_at = NOW()`,
			rec.ID, userID(rec.UserID), rec.Start, rec.End, rec.TimezoneOffset, rec.SportID,
			strain, avgHeartRate, maxHeartRate, kilojoule,
			percentRecorded, distance, altitudeGain, altitudeDelta,
			zone0, zone1, zone2, zone3, zone4, zone5)
		if err != nil {
			return 0, errs.Wrapf(err, "upserting workout %s", rec.ID)
		}
	}
	log.Info().Int("records", len(records)).Msg("Upserted workout records")
	return len(records), nil
}

// userID renders the numeric user id into the VARCHAR column, falling back
// to "unknown" when the API omitted it.
func userID(id int64) string {
	if id == 0 {
		return "unknown"
	}
	return strconv.FormatInt(id, 10)
}
