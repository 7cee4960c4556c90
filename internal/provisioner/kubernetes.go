package provisioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubernetesProvisioner realizes clusters as a Namespace plus a NodePort
// Service on a real Kubernetes cluster, grounded on the teacher's
// k8sclient/client.go (clientset construction from kubeconfig, ObjectMeta
// / resource-requirement building) generalized from single pods to a
// namespace-scoped party cluster.
type KubernetesProvisioner struct {
	clientset       *kubernetes.Clientset
	namespacePrefix string
}

// NewKubernetesProvisioner builds a KubernetesProvisioner from the default
// kubeconfig location, following the teacher's NewK8sClient.
func NewKubernetesProvisioner(namespacePrefix string) (*KubernetesProvisioner, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", filepath.Join(os.Getenv("HOME"), ".kube", "config"))
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	return newKubernetesProvisioner(cfg, namespacePrefix)
}

// NewTestKubernetesProvisioner builds a KubernetesProvisioner from an
// explicit rest.Config, for use against an envtest or fake apiserver.
func NewTestKubernetesProvisioner(cfg *rest.Config, namespacePrefix string) (*KubernetesProvisioner, error) {
	return newKubernetesProvisioner(cfg, namespacePrefix)
}

func newKubernetesProvisioner(cfg *rest.Config, namespacePrefix string) (*KubernetesProvisioner, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return &KubernetesProvisioner{clientset: clientset, namespacePrefix: namespacePrefix}, nil
}

func (k *KubernetesProvisioner) serviceName() string { return "cluster-gateway" }

// Create provisions a Namespace named after the cluster and a NodePort
// Service inside it. The address handed back to the caller is the
// namespace name: every other call takes it as-is.
func (k *KubernetesProvisioner) Create(ctx context.Context, name string) (string, error) {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"app": "party-cluster"},
		},
	}
	if _, err := k.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return name, nil
		}
		return "", fmt.Errorf("create namespace %s: %w", name, err)
	}

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      k.serviceName(),
			Namespace: name,
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: map[string]string{"app": "party-cluster"},
			Ports: []corev1.ServicePort{
				{Name: "gateway", Port: 80, TargetPort: intstr.FromInt(8080)},
			},
		},
	}
	if _, err := k.clientset.CoreV1().Services(name).Create(ctx, svc, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return "", fmt.Errorf("create gateway service in %s: %w", name, err)
	}

	return name, nil
}

// Delete tears down the namespace. Kubernetes garbage-collects everything
// inside it; deleting a namespace that is already gone is not an error.
func (k *KubernetesProvisioner) Delete(ctx context.Context, address string) error {
	err := k.clientset.CoreV1().Namespaces().Delete(ctx, address, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete namespace %s: %w", address, err)
	}
	return nil
}

func (k *KubernetesProvisioner) Status(ctx context.Context, address string) (Status, error) {
	ns, err := k.clientset.CoreV1().Namespaces().Get(ctx, address, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return StatusClusterNotFound, nil
		}
		return "", fmt.Errorf("get namespace %s: %w", address, err)
	}

	if ns.Status.Phase == corev1.NamespaceTerminating {
		return StatusDeleting, nil
	}

	svc, err := k.clientset.CoreV1().Services(address).Get(ctx, k.serviceName(), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return StatusCreating, nil
		}
		return "", fmt.Errorf("get gateway service in %s: %w", address, err)
	}
	if len(svc.Spec.Ports) == 0 || svc.Spec.Ports[0].NodePort == 0 {
		return StatusCreating, nil
	}
	return StatusReady, nil
}

func (k *KubernetesProvisioner) Ports(ctx context.Context, address string) ([]int, error) {
	svc, err := k.clientset.CoreV1().Services(address).Get(ctx, k.serviceName(), metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get gateway service in %s: %w", address, err)
	}
	ports := make([]int, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		if p.NodePort != 0 {
			ports = append(ports, int(p.NodePort))
		}
	}
	return ports, nil
}

func (k *KubernetesProvisioner) AppCount(ctx context.Context, address string) (int, error) {
	pods, err := k.clientset.CoreV1().Pods(address).List(ctx, metav1.ListOptions{LabelSelector: "role=app"})
	if err != nil {
		return 0, fmt.Errorf("list app pods in %s: %w", address, err)
	}
	return len(pods.Items), nil
}

func (k *KubernetesProvisioner) ServiceCount(ctx context.Context, address string) (int, error) {
	svcs, err := k.clientset.CoreV1().Services(address).List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("list services in %s: %w", address, err)
	}
	return len(svcs.Items), nil
}

var (
	_ Provisioner   = (*KubernetesProvisioner)(nil)
	_ CounterSource = (*KubernetesProvisioner)(nil)
)
