package uri

const (
	VersionKey        = "version"
	ResourcesKey      = "resources"
	ResourceIDKey     = "resourceID"
	NodeIDKey         = "nodeID"
	SubscriptionIDKey = "subscriptionID"
	EventIDKey        = "eventID"
	ServiceTypeKey    = "serviceType"
	InstanceKey       = "instance"

	resourcesPattern = "nodes|devices|sources|flows|senders|receivers"
	versionVar       = "{" + VersionKey + ":v[0-9]+\\.[0-9]+}"
	resourcesVar     = "{" + ResourcesKey + ":" + resourcesPattern + "}"

	Base = "/x-nmos"

	RegistrationAPI    = "registration"
	RegistrationBase   = Base + "/" + RegistrationAPI
	Registration       = RegistrationBase + "/" + versionVar
	RegistrationRes    = Registration + "/resource"
	RegistrationByID   = RegistrationRes + "/" + resourcesVar + "/{" + ResourceIDKey + "}"
	RegistrationHealth = Registration + "/health/nodes/{" + NodeIDKey + "}"

	QueryAPI       = "query"
	QueryBase      = Base + "/" + QueryAPI
	Query          = QueryBase + "/" + versionVar
	QueryResources = Query + "/" + resourcesVar
	QueryResource  = QueryResources + "/{" + ResourceIDKey + "}"
	Subscriptions  = Query + "/subscriptions"
	Subscription   = Subscriptions + "/{" + SubscriptionIDKey + "}"
	SubscriptionWS = Subscription + "/ws"

	NodeAPI       = "node"
	NodeBase      = Base + "/" + NodeAPI
	Node          = NodeBase + "/" + versionVar
	NodeSelf      = Node + "/self"
	NodeResources = Node + "/" + resourcesVar
	NodeResource  = NodeResources + "/{" + ResourceIDKey + "}"

	Settings    = "/settings"
	SettingsAll = Settings + "/all"
	Metrics     = "/metrics"
	Admin       = "/admin/"

	LogBase   = "/log"
	LogEvents = LogBase + "/events"
	LogEvent  = LogEvents + "/{" + EventIDKey + "}"

	DNSSDBase     = "/x-dns-sd"
	DNSSD         = DNSSDBase + "/v1.0"
	DNSSDType     = DNSSD + "/{" + ServiceTypeKey + "}"
	DNSSDInstance = DNSSDType + "/{" + InstanceKey + "}"
)

// QueryListing is the content of the versioned query API root.
var QueryListing = []string{"nodes/", "devices/", "sources/", "flows/", "senders/", "receivers/", "subscriptions/"}

// RegistrationListing is the content of the versioned registration API root.
var RegistrationListing = []string{"resource/", "health/"}

// NodeListing is the content of the versioned node API root.
var NodeListing = []string{"self/", "devices/", "sources/", "flows/", "senders/", "receivers/"}

// SubscriptionWSPath returns the path of the event stream of a subscription.
func SubscriptionWSPath(version, id string) string {
	return QueryBase + "/" + version + "/subscriptions/" + id + "/ws"
}

// ResourcePath returns the registration path of a resource.
func ResourcePath(version, resources, id string) string {
	return RegistrationBase + "/" + version + "/resource/" + resources + "/" + id
}
