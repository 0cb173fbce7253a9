package nacos

import (
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client 封装 Nacos 命名客户端，只暴露服务注册/注销。
type Client struct {
	namingClient naming_client.INamingClient
	groupName    string
}

// NewNacosClient 创建 Nacos 客户端。addrs 格式为 "ip1:port1,ip2:port2"。
func NewNacosClient(addrs string, namespaceId, groupName string) (*Client, error) {
	if namespaceId == "" {
		log.Warn().Msg("nacos namespace not set, using default public namespace")
	}
	if groupName == "" {
		groupName = "DEFAULT_GROUP"
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid nacos address: %s", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid port in nacos address: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(parts[0], port))
	}

	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceId),
	)

	namingClient, err := clients.NewNamingClient(
		vo.NacosClientParam{
			ClientConfig:  &clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}

	return &Client{namingClient: namingClient, groupName: groupName}, nil
}

// RegisterServiceInstance 把服务实例注册为临时节点，心跳断开后自动摘除。
func (c *Client) RegisterServiceInstance(serviceName, ip string, port int) error {
	success, err := c.namingClient.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return errors.Wrapf(err, "register %s with nacos", serviceName)
	}
	if !success {
		return errors.Errorf("nacos rejected registration for service %s", serviceName)
	}
	log.Info().Str("service", serviceName).Str("ip", ip).Int("port", port).
		Msg("registered with nacos")
	return nil
}

// DeregisterServiceInstance 从 Nacos 注销服务实例。
func (c *Client) DeregisterServiceInstance(serviceName, ip string, port int) error {
	_, err := c.namingClient.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return errors.Wrapf(err, "deregister %s with nacos", serviceName)
	}
	log.Info().Str("service", serviceName).Str("ip", ip).Int("port", port).
		Msg("deregistered from nacos")
	return nil
}
