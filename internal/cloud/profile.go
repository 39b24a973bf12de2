package cloud

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/go-viper/mapstructure/v2"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const (
	DefaultUsername  = "azureuser"
	DefaultDiskSize  = 100
	DefaultCaching   = "ReadOnly"
	maxLun           = 15
	minPasswordLen   = 8
	maxPasswordLen   = 123
	minPasswordTypes = 3
)

// Volume is one data disk of a machine. Each gets its own managed disk.
type Volume struct {
	Name               string `mapstructure:"name"`
	DiskSizeGB         int32  `mapstructure:"disk_size_gb"`
	Size               int32  `mapstructure:"size"`
	Caching            string `mapstructure:"caching"`
	Lun                *int32 `mapstructure:"lun"`
	StorageAccountType string `mapstructure:"storage_account_type"`
}

// VMProfile describes a machine to provision.
type VMProfile struct {
	Name                 string `mapstructure:"name" validate:"required"`
	ResourceGroup        string `mapstructure:"resource_group" validate:"required"`
	Location             string `mapstructure:"location"`
	Size                 string `mapstructure:"size" validate:"required"`
	Image                string `mapstructure:"image" validate:"required"`
	Network              string `mapstructure:"network"`
	Subnet               string `mapstructure:"subnet"`
	NetworkResourceGroup string `mapstructure:"network_resource_group"`
	IfaceName            string `mapstructure:"iface_name"`
	AllocatePublicIP     bool   `mapstructure:"allocate_public_ip"`
	PublicIPSku          string `mapstructure:"public_ip_sku"`
	PrivateIPAddress     string `mapstructure:"private_ip_address"`

	SSHUsername                   string `mapstructure:"ssh_username"`
	SSHPublicKeyFile              string `mapstructure:"ssh_publickeyfile"`
	SSHPassword                   string `mapstructure:"ssh_password"`
	DisablePasswordAuthentication bool   `mapstructure:"disable_password_authentication"`
	// OSType is Linux unless Windows is named.
	OSType string `mapstructure:"os_type"`

	OSDiskSizeGB       int32             `mapstructure:"os_disk_size_gb"`
	StorageAccountType string            `mapstructure:"storage_account_type"`
	Volumes            []any             `mapstructure:"volumes"`
	AvailabilitySet    string            `mapstructure:"availability_set"`
	IdentityType       string            `mapstructure:"identity_type"`
	Tags               map[string]string `mapstructure:"tags"`
	CustomData         string            `mapstructure:"custom_data"`
	Userdata           string            `mapstructure:"userdata"`
	UserdataFile       string            `mapstructure:"userdata_file"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DecodeProfile reads a VMProfile from keyword arguments.
func DecodeProfile(args map[string]any) (*VMProfile, error) {
	profile := &VMProfile{}
	if err := loader.Decode("cloud.create", args, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ResolveProfile merges the named profile of cfg under overrides and fills
// in the provider defaults.
func ResolveProfile(cfg models.CloudConfig, name string, overrides map[string]any) (*VMProfile, error) {
	args := models.BasicConfig{}
	if len(cfg.ResourceGroup) > 0 {
		args["resource_group"] = cfg.ResourceGroup
	}
	if len(cfg.Location) > 0 {
		args["location"] = cfg.Location
	}
	if len(name) > 0 {
		base, ok := cfg.Profiles[name]
		if !ok {
			return nil, fmt.Errorf("cloud profile %q is not configured", name)
		}
		args.Update(base)
	}
	args.Update(overrides)
	return DecodeProfile(args)
}

func (p *VMProfile) windows() bool {
	return strings.EqualFold(p.OSType, "Windows")
}

func (p *VMProfile) username() string {
	if len(p.SSHUsername) == 0 {
		return DefaultUsername
	}
	return p.SSHUsername
}

func (p *VMProfile) ifaceName() string {
	if len(p.IfaceName) == 0 {
		return p.Name + "-iface0"
	}
	return p.IfaceName
}

func (p *VMProfile) networkResourceGroup() string {
	if len(p.NetworkResourceGroup) == 0 {
		return p.ResourceGroup
	}
	return p.NetworkResourceGroup
}

// ValidatePassword applies the admin password rules of Azure: 8 to 123
// characters drawing on at least 3 of upper case, lower case, digits and
// special characters.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("the admin password must be between %d-%d characters long", minPasswordLen, maxPasswordLen)
	}
	if common.PasswordComplexity(password) < minPasswordTypes {
		return fmt.Errorf("the admin password must contain at least 3 of the following types: upper, lower, digits, special characters")
	}
	return nil
}

// osProfile builds the login configuration: the SSH public key file when
// given on Linux, otherwise a validated password.
func (p *VMProfile) osProfile() (*armcompute.OSProfile, error) {
	profile := &armcompute.OSProfile{
		AdminUsername: to.Ptr(p.username()),
		ComputerName:  to.Ptr(p.Name),
	}
	if len(p.CustomData) > 0 {
		profile.CustomData = to.Ptr(encodeBase64(p.CustomData))
	}

	usesKey := !p.windows() && len(p.SSHPublicKeyFile) > 0
	if usesKey {
		data, err := os.ReadFile(p.SSHPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh publickey file '%s': %w", p.SSHPublicKeyFile, err)
		}
		profile.LinuxConfiguration = &armcompute.LinuxConfiguration{
			DisablePasswordAuthentication: to.Ptr(p.DisablePasswordAuthentication),
			SSH: &armcompute.SSHConfiguration{
				PublicKeys: []*armcompute.SSHPublicKey{{
					KeyData: to.Ptr(strings.TrimSpace(string(data))),
					Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", p.username())),
				}},
			},
		}
	}

	if p.windows() || !usesKey || (len(p.SSHPassword) > 0 && !p.DisablePasswordAuthentication) {
		if err := ValidatePassword(p.SSHPassword); err != nil {
			return nil, err
		}
		profile.AdminPassword = to.Ptr(p.SSHPassword)
	}
	return profile, nil
}

// volumes applies the data disk defaults: a name of <vm>-datadisk<lun>,
// 100 GB, ReadOnly caching and the next free LUN.
func (p *VMProfile) volumes() ([]Volume, error) {
	var volumes []Volume
	used := map[int32]bool{}
	for i, raw := range p.Volumes {
		var volume Volume
		switch v := raw.(type) {
		case string:
			volume.Name = v
		case map[string]any:
			if err := mapstructure.WeakDecode(v, &volume); err != nil {
				return nil, fmt.Errorf("volumes[%d]: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("volumes[%d] must be a name or a mapping", i)
		}
		if volume.Lun != nil {
			used[*volume.Lun] = true
		}
		volumes = append(volumes, volume)
	}

	next := int32(0)
	for i := range volumes {
		v := &volumes[i]
		if v.Lun == nil {
			for used[next] {
				next++
			}
			if next > maxLun {
				return nil, fmt.Errorf("maximum lun count has been reached")
			}
			v.Lun = to.Ptr(next)
			used[next] = true
		}
		if len(v.Name) == 0 {
			v.Name = fmt.Sprintf("%s-datadisk%d", p.Name, *v.Lun)
		}
		if v.DiskSizeGB == 0 {
			v.DiskSizeGB = v.Size
		}
		if v.DiskSizeGB == 0 {
			v.DiskSizeGB = DefaultDiskSize
		}
		if len(v.Caching) == 0 {
			v.Caching = DefaultCaching
		}
		if len(v.StorageAccountType) == 0 {
			v.StorageAccountType = p.StorageAccountType
		}
	}
	return volumes, nil
}

func (p *VMProfile) availabilitySet(subscriptionID string) *armcompute.SubResource {
	if len(p.AvailabilitySet) == 0 {
		return nil
	}
	id := p.AvailabilitySet
	if !azure.IsResourceID(id) {
		id = azure.ResourceID(subscriptionID, p.ResourceGroup, "Microsoft.Compute/availabilitySets/"+id)
	}
	return &armcompute.SubResource{ID: to.Ptr(id)}
}
