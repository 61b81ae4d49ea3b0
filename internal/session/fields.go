package session

// FieldSet is the ordered list of trial log columns copied into anchor rows.
type FieldSet []string

// DefaultStartColumn is the trial log column holding the trial start time on
// the stimulus software's clock.
const DefaultStartColumn = "trial_global_start_time"

// DefaultFieldSet lists the stimulus columns written by the attention
// experiment.
var DefaultFieldSet = FieldSet{
	"att_grab_start_time_intended",
	"gaze_to_audio_delay_intended",
	"audio_to_visual_delay_intended",
	"visual_duration_intended",
	"end_blank_duration_intended",
	"att_grab_start_time_actual",
	"gaze_captured_time",
	"audio_onset_time",
	"visual_onset_time",
	"visual_offset_time",
	"trial_end_time",
	"attention_sounds_played",
	"visual_stimuli_duration_nframes",
	"visual_social_prop",
	"visual_geometric_prop",
	"visual_manmade_prop",
	"visual_natural_prop",
	"visual_social_filepath",
	"visual_social_pos_x",
	"visual_social_pos_y",
	"visual_geometric_filepath",
	"visual_geometric_pos_x",
	"visual_geometric_pos_y",
	"visual_manmade_filepath",
	"visual_manmade_pos_x",
	"visual_manmade_pos_y",
	"visual_natural_filepath",
	"visual_natural_pos_x",
	"visual_natural_pos_y",
	"audio_filepath",
	"audio_volume",
}

// Required returns every column a trial log must carry: the metadata fields
// followed by the start time column.
func (f FieldSet) Required(startColumn string) []string {
	out := make([]string, 0, len(f)+1)
	out = append(out, f...)
	return append(out, startColumn)
}

// Clone returns an independent copy.
func (f FieldSet) Clone() FieldSet {
	return append(FieldSet(nil), f...)
}
