package services

import (
	"strings"

	"github.com/ochairo/redist/internal/domain/entities"
)

// MapAssetPlatform resolves an upstream asset name to its configured platform
// target. The asset name is reduced to its platform suffix by stripping the
// executable prefix and the Windows extension, so "buf-Linux-x86_64" and
// "buf-Windows-x86_64.exe" both resolve through the configured suffix list.
// Returns false when the asset's platform is not configured.
func MapAssetPlatform(project *entities.Project, assetName string) (entities.PlatformTarget, bool) {
	suffix := strings.TrimPrefix(assetName, project.Executable.Name+"-")
	suffix = strings.TrimSuffix(suffix, ".exe")

	for _, target := range project.Platforms {
		if target.AssetSuffix == suffix {
			return target, true
		}
	}

	return entities.PlatformTarget{}, false
}

// WheelPlatformTag returns the full compatibility tag for a platform target
func WheelPlatformTag(target entities.PlatformTarget) string {
	return entities.WheelTagPrefix + target.WheelTag
}

// FindHostTarget returns the configured platform target matching the host
// os/arch pair, if any. The supported set is the explicit configuration
// list; nothing is inferred from asset names at runtime.
func FindHostTarget(project *entities.Project, goos, goarch string) (entities.PlatformTarget, bool) {
	for _, target := range project.Platforms {
		if target.OS == goos && target.Arch == goarch {
			return target, true
		}
	}

	return entities.PlatformTarget{}, false
}

// HostLayout builds the package layout the host machine can execute, along
// with the platform target it derives from, if the host platform is
// configured
func HostLayout(project *entities.Project, version, goos, goarch string) (entities.PackageLayout, entities.PlatformTarget, bool) {
	target, ok := FindHostTarget(project, goos, goarch)
	if !ok {
		return entities.PackageLayout{}, entities.PlatformTarget{}, false
	}

	layout := entities.PackageLayout{
		Name:        project.Name,
		Version:     version,
		PlatformTag: WheelPlatformTag(target),
		Executable:  project.Executable.Name,
	}
	return layout, target, true
}
