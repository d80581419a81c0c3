package deps

import "dupelens/internal/config"

// MediaRequirements lists the external binaries a scan needs. ffprobe is
// mandatory only for the metadata and perceptual stages; the hash cascade
// runs without either tool, so both are marked optional and the pipeline
// degrades when they are missing.
func MediaRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Reads container metadata for the metadata and perceptual stages",
			Optional:    true,
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Extracts sample frames for perceptual hashing",
			Optional:    true,
		},
	}
}
